// Package api provides the HTTP server for the relay.
//
// The api package implements:
//   - GET /health: JSON liveness check with room and player counts
//   - GET /ws: WebSocket upgrade into the relay
//   - GET /metrics: Prometheus exposition
//   - GET /: human-readable status page
//
// Architecture:
//
// The server is a thin gorilla/mux router over the room registry and the
// websocket relay. It holds no state of its own; counts come from the
// registry at request time.
//
// Usage:
//
//	server := api.NewServer(reg, relay, m, logger)
//	http.ListenAndServe(":3000", server)
package api
