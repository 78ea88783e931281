// Package client implements the widget client: one WebSocket session to the
// widget server, a refresh ticker, and patching of the #widget element.
//
// All session state (stream handle, liveness counter, connection state) is
// owned by a Session and mutated only from its event loop. Ticks, open/close
// notifications and inbound messages are delivered to that loop one at a
// time, so handlers never overlap.
//
// Lifecycle:
//
//	Disconnected --Run--> Connecting --open--> Connected
//	      ^                   |                    |
//	      +----dial failed----+<------close--------+
//	Run returns -> Closed
//
// A closed connection is not re-established; every following tick reports
// "no connection established" until the process restarts.
//
// Example Usage:
//
//	page := dom.Blank()
//	session, err := client.New("https://widget.local:8080", page, client.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	return session.Run(ctx)
package client
