// Package dom holds the in-memory HTML document the widget client renders into.
//
// A Document behaves like the page hosting the widget: callers resolve an
// element with a CSS selector (first match wins, as with querySelector) and
// replace its children with a server-provided fragment. Fragments are parsed
// in the context of the target element using golang.org/x/net/html, so
// markup that is only valid inside e.g. a <table> parses the way a browser
// would parse it.
//
// Fragments are trusted as-is. A sanitizing policy can be enabled with
// WithSanitizer, but it is off unless the caller asks for it.
package dom
