// Package protocol defines the JSON messages exchanged over the widget
// WebSocket.
//
// Client → Server:
//
//	{"action": "refresh", "sonos_name": "Kitchen"}
//
// Server → Client:
//
//	{"html": "<div class=\"widget\">...</div>"}
//
// Inbound updates are parsed into a ParseResult instead of returning an
// error, so callers branch on Succeeded / Failed explicitly.
package protocol
