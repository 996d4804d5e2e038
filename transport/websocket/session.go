package websocket

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/doommaze/relay/game/registry"
)

// Session is the per-connection relay handler. It translates inbound events
// into registry mutations and broadcasts to the rest of the room.
//
// roomCode and playerID are empty until the first accepted joinRoom; join is
// the only state transition, and disconnect is terminal. Both fields are
// touched only from the connection's read goroutine, so they need no lock.
type Session struct {
	relay  *Relay
	client *Client
	logger *zap.Logger

	roomCode string
	playerID string
}

// handleMessage decodes one inbound envelope and dispatches it. Malformed
// or unknown events are dropped; nothing a client sends may take the server
// down.
func (s *Session) handleMessage(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug("dropping malformed message", zap.Error(err))
		return
	}

	switch env.Event {
	case EventJoinRoom:
		s.handleJoin(env.Data)
	case EventPlayerMove:
		s.handleMove(env.Data)
	case EventPlayerShoot:
		s.handleShoot(env.Data)
	case EventPlayerDamage:
		s.handleDamage(env.Data)
	case EventPlayerDeath:
		s.handleDeath(env.Data)
	case EventEnemyKilled:
		s.handleEnemyKilled(env.Data)
	default:
		s.logger.Debug("dropping unknown event", zap.String("event", env.Event))
	}
}

// handleJoin registers the player and hydrates it with the room's current
// occupants. Rejoining an id that is already present overwrites it
// (last-write-wins); a session that joins a second room leaves its first.
func (s *Session) handleJoin(data json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomCode == "" || p.PlayerID == "" {
		s.logger.Debug("dropping invalid join", zap.Error(err))
		return
	}

	// A session that joins under a new room or a new identity abandons its
	// old registration first; rejoining with the same id just overwrites.
	if s.roomCode != "" && (s.roomCode != p.RoomCode || s.playerID != p.PlayerID) {
		s.leaveCurrentRoom()
	}

	x, z := s.relay.spawnPosition()

	s.relay.registry.EnsureRoom(p.RoomCode)
	s.relay.registry.AddPlayer(p.RoomCode, &registry.Player{
		ID:        p.PlayerID,
		Name:      p.PlayerName,
		X:         x,
		Z:         z,
		HP:        100,
		SessionID: s.client.sessionID,
	})

	s.roomCode = p.RoomCode
	s.playerID = p.PlayerID
	s.relay.hub.Join(p.RoomCode, s.client)

	s.broadcast(EventPlayerJoined, PlayerJoinedEvent{
		PlayerID:   p.PlayerID,
		PlayerName: p.PlayerName,
		X:          x,
		Z:          z,
		HP:         100,
	})

	// The joiner alone gets the snapshot of everyone already present.
	snapshot := s.relay.registry.Snapshot(p.RoomCode, p.PlayerID)
	if snapshot == nil {
		snapshot = []registry.PlayerView{}
	}
	s.client.enqueue(encodeEvent(EventRoomState, snapshot))

	s.logger.Info("player joined",
		zap.String("room", p.RoomCode),
		zap.String("player", p.PlayerID),
		zap.String("name", p.PlayerName))
}

// handleMove stores the reported position and relays it. The server applies
// no bounds or speed checks; the reported position is trusted entirely.
func (s *Session) handleMove(data json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var p PlayerMovePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Debug("dropping invalid move", zap.Error(err))
		return
	}

	ok := s.relay.registry.UpdatePlayer(s.roomCode, s.playerID, registry.Update{
		X: &p.X, Z: &p.Z, Yaw: p.Yaw, Pitch: p.Pitch,
	})
	if !ok {
		// Late update after a disconnect elsewhere; drop it.
		return
	}

	s.broadcast(EventPlayerMoved, PlayerMovedEvent{
		PlayerID: s.playerID,
		X:        p.X,
		Z:        p.Z,
		Yaw:      p.Yaw,
		Pitch:    p.Pitch,
	})
}

// handleShoot is a stateless fan-out; the server keeps no shot bookkeeping.
func (s *Session) handleShoot(data json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var p PlayerShootPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	s.broadcast(EventPlayerShoot, PlayerShootEvent{PlayerID: s.targetID(p.PlayerID)})
}

// handleDamage overwrites the target's hp with the client-reported value.
// Any session in the room may report damage for any player id; the relay
// does not verify that hp decreased by damage or that the reporter is the
// victim.
func (s *Session) handleDamage(data json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var p PlayerDamagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Debug("dropping invalid damage report", zap.Error(err))
		return
	}

	target := s.targetID(p.PlayerID)
	if !s.relay.registry.UpdatePlayer(s.roomCode, target, registry.Update{HP: &p.HP}) {
		return
	}
	s.broadcast(EventPlayerDamage, PlayerDamageEvent{PlayerID: target, HP: p.HP})
}

// handleDeath relays the death without touching the registry: a dead player
// keeps its record and may keep sending events until it disconnects.
func (s *Session) handleDeath(data json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var p PlayerDeathPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	s.broadcast(EventPlayerDeath, PlayerDeathEvent{PlayerID: s.targetID(p.PlayerID)})
}

// handleEnemyKilled relays a cosmetic enemy kill; the server holds no enemy
// state.
func (s *Session) handleEnemyKilled(data json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var p EnemyKilledPayload
	if err := json.Unmarshal(data, &p); err != nil || p.EnemyID == "" {
		return
	}
	s.broadcast(EventEnemyKilled, EnemyKilledEvent{EnemyID: p.EnemyID})
}

// disconnect removes the session's player and tells the room. Called once
// from the read pump on its way out; best-effort, never fatal.
func (s *Session) disconnect() {
	code, playerID, ok := s.relay.registry.RemoveBySession(s.client.sessionID)
	if !ok {
		return
	}

	msg := encodeEvent(EventPlayerLeft, PlayerLeftEvent{PlayerID: playerID})
	s.relay.hub.Broadcast(code, msg, s.client)
	s.relay.countEvent(EventPlayerLeft)

	s.logger.Info("player left",
		zap.String("room", code),
		zap.String("player", playerID))
}

// leaveCurrentRoom silently detaches the session from its current room
// before it joins a different one.
func (s *Session) leaveCurrentRoom() {
	removed, _ := s.relay.registry.RemovePlayer(s.roomCode, s.playerID)
	if removed {
		msg := encodeEvent(EventPlayerLeft, PlayerLeftEvent{PlayerID: s.playerID})
		s.relay.hub.Broadcast(s.roomCode, msg, s.client)
		s.relay.countEvent(EventPlayerLeft)
	}
	s.roomCode = ""
	s.playerID = ""
}

// targetID resolves the player id an event applies to. The wire payload's id
// wins when present (the permissive trust model allows reporting for other
// players); otherwise the session's own player is assumed.
func (s *Session) targetID(payloadID string) string {
	if payloadID != "" {
		return payloadID
	}
	return s.playerID
}

// broadcast fans an event out to the rest of the session's room.
func (s *Session) broadcast(event string, payload any) {
	s.relay.hub.Broadcast(s.roomCode, encodeEvent(event, payload), s.client)
	s.relay.countEvent(event)
}
