package websocket

import "encoding/json"

// Event names shared by both directions of the protocol. Inbound and
// outbound events reuse the same names; the payload shapes differ.
const (
	EventJoinRoom     = "joinRoom"
	EventRoomState    = "roomState"
	EventPlayerJoined = "playerJoined"
	EventPlayerMove   = "playerMove"
	EventPlayerMoved  = "playerMoved"
	EventPlayerShoot  = "playerShoot"
	EventPlayerDamage = "playerDamage"
	EventPlayerDeath  = "playerDeath"
	EventEnemyKilled  = "enemyKilled"
	EventPlayerLeft   = "playerLeft"
)

// Envelope is the wire framing for every message in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads. Clients address events with roomCode/playerId, but the
// server routes by the session's own join state; the payload ids matter only
// where impersonation is allowed (damage, death, shoot targets).

// JoinRoomPayload starts a session's membership in a room.
type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// PlayerMovePayload reports a client's new position and orientation.
// Yaw/pitch are optional; absent means unchanged.
type PlayerMovePayload struct {
	RoomCode string   `json:"roomCode"`
	PlayerID string   `json:"playerId"`
	X        float64  `json:"x"`
	Z        float64  `json:"z"`
	Yaw      *float64 `json:"yaw,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
}

// PlayerShootPayload announces a shot. Pure fan-out, no server state.
type PlayerShootPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// PlayerDamagePayload reports damage to a player. The server stores the
// reported hp verbatim and never checks it against damage; any session may
// report damage for any player id in its room.
type PlayerDamagePayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Damage   int    `json:"damage"`
	HP       int    `json:"hp"`
}

// PlayerDeathPayload announces a death. The player stays registered until
// its transport disconnects.
type PlayerDeathPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// EnemyKilledPayload syncs a cosmetic enemy kill. The server holds no enemy
// state.
type EnemyKilledPayload struct {
	RoomCode string `json:"roomCode"`
	EnemyID  string `json:"enemyId"`
}

// Outbound payloads.

// PlayerJoinedEvent tells existing room members about a new player.
type PlayerJoinedEvent struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	HP         int     `json:"hp"`
}

// PlayerMovedEvent relays a position update to room peers.
type PlayerMovedEvent struct {
	PlayerID string   `json:"playerId"`
	X        float64  `json:"x"`
	Z        float64  `json:"z"`
	Yaw      *float64 `json:"yaw,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
}

// PlayerShootEvent relays a shot.
type PlayerShootEvent struct {
	PlayerID string `json:"playerId"`
}

// PlayerDamageEvent relays a player's reported hp.
type PlayerDamageEvent struct {
	PlayerID string `json:"playerId"`
	HP       int    `json:"hp"`
}

// PlayerDeathEvent relays a death.
type PlayerDeathEvent struct {
	PlayerID string `json:"playerId"`
}

// EnemyKilledEvent relays an enemy kill.
type EnemyKilledEvent struct {
	EnemyID string `json:"enemyId"`
}

// PlayerLeftEvent tells room peers a player disconnected.
type PlayerLeftEvent struct {
	PlayerID string `json:"playerId"`
}

// encodeEvent wraps an event payload in the wire envelope. Marshal failures
// cannot happen for the fixed payload types above, so the error collapses to
// a nil return the callers skip.
func encodeEvent(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return raw
}
