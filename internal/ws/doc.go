// Package ws serves the widget WebSocket endpoint.
//
// The endpoint shares "/" with the index page: requests carrying a WebSocket
// upgrade are handed to Handler.HandleConnection, everything else gets the
// page.
//
// Message Types (Client → Server):
//   - refresh: {"action": "refresh", "sonos_name": "<room>"}
//
// Message Types (Server → Client):
//   - update: {"html": "<rendered widget fragment>"}
//
// Messages without an action, refresh messages without a room, and unknown
// actions are ignored. Lookup and render failures are logged and the
// connection stays open; the client notices through its liveness counter.
// A non-text frame ends the connection.
//
// Example Usage:
//
//	handler := ws.NewHandler(service, logger, metrics)
//	router.GET("/", func(c *gin.Context) {
//		if ws.IsUpgrade(c.Request) {
//			handler.HandleConnection(c)
//			return
//		}
//		servePage(c)
//	})
package ws
