// Package websocket provides the relay's WebSocket transport.
//
// The websocket package implements:
//   - Connection upgrade and lifecycle management
//   - Room-scoped broadcast groups with at-most-once fan-out
//   - Per-connection relay session handlers
//   - The JSON wire protocol shared with the maze client
//
// Architecture:
//
// The package uses a hub-and-spoke model. The Hub tracks which clients are
// subscribed to which room; each connection runs a read pump (dispatching
// inbound events to its Session) and a write pump (draining a buffered send
// queue, with ping keepalives). The Session translates events into registry
// mutations and broadcasts; the hub never touches player state.
//
// Message Protocol:
//
// Every message in either direction is a JSON envelope:
//
//	{"event": "playerMove", "data": {"x": 5, "z": 5}}
//
// Inbound events: joinRoom, playerMove, playerShoot, playerDamage,
// playerDeath, enemyKilled. Outbound events: roomState (joiner only),
// playerJoined, playerMoved, playerShoot, playerDamage, playerDeath,
// enemyKilled, playerLeft.
//
// Delivery:
//
// Broadcasts are fire-and-forget. A peer whose send buffer is full simply
// misses the message; there is no replay or acknowledgement beyond what the
// transport itself provides.
//
// Trust:
//
// The relay validates nothing beyond JSON shape and room membership. Clients
// report their own position and hp, and any session may report damage for
// any player id in its room. This permissive trust model is a documented
// design limitation, not a bug.
//
// Usage:
//
//	relay := websocket.NewRelay(reg, 50, m, logger)
//	mux.HandleFunc("/ws", relay.ServeWS)
package websocket
