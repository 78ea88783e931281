// Package widget renders the now-playing widget fragment for a named room.
//
// A Provider looks up the room's playback Status; the Renderer turns it into
// the HTML fragment the client drops into #widget. Artwork is never linked
// directly: its URL is rewritten to the server's own /image_proxy so the
// browser only talks to one origin.
//
// Providers:
//   - FileProvider: YAML or TOML file, re-read on every lookup
//   - HTTPProvider: JSON over HTTP behind a circuit breaker
package widget
