package registry

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRoomNotFound is returned by AddPlayer when the target room does not
	// exist. Callers that EnsureRoom first never see it.
	ErrRoomNotFound = errors.New("room not found")
)

// Room is one play session's server-side state. The registry owns all Room
// and Player records; callers hold only the room code and player id.
type Room struct {
	Code      string
	Players   map[string]*Player
	CreatedAt time.Time
}

// Player is the last state a client reported for itself. Nothing here is
// validated by the server; hp and position are client-authoritative.
type Player struct {
	ID   string
	Name string

	X, Z       float64
	Yaw, Pitch float64

	HP int

	// SessionID is the transport session that owns this player. It is a
	// lookup key for disconnect cleanup, not an ownership handle.
	SessionID string

	LastUpdate time.Time
}

// PlayerView is the public projection of a Player sent to other clients.
type PlayerView struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	HP         int     `json:"hp"`
}

// Update carries the fields a playerMove or playerDamage event may change.
// Nil pointers leave the stored value untouched.
type Update struct {
	X, Z       *float64
	Yaw, Pitch *float64
	HP         *int
}

// Registry is the single source of truth for rooms and players. Every
// connection goroutine and the idle reaper touch it concurrently, so all
// operations take the registry-wide lock. No operation blocks while holding
// it.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	now func() time.Time // swapped out in tests
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// EnsureRoom returns the room for code, creating it with an empty player set
// if it does not exist yet. Idempotent.
func (r *Registry) EnsureRoom(code string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		room = &Room{
			Code:      code,
			Players:   make(map[string]*Player),
			CreatedAt: r.now(),
		}
		r.rooms[code] = room
	}
	return room
}

// AddPlayer inserts the player into the room, overwriting any existing entry
// with the same id (a rejoin is last-write-wins). The room must already
// exist.
func (r *Registry) AddPlayer(code string, p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	p.LastUpdate = r.now()
	room.Players[p.ID] = p
	return nil
}

// UpdatePlayer merges the update into an existing player record and
// refreshes its LastUpdate. It reports false when the room or player is
// unknown; late events after a disconnect land here and are dropped by the
// caller.
func (r *Registry) UpdatePlayer(code, playerID string, u Update) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	p, ok := room.Players[playerID]
	if !ok {
		return false
	}

	if u.X != nil {
		p.X = *u.X
	}
	if u.Z != nil {
		p.Z = *u.Z
	}
	if u.Yaw != nil {
		p.Yaw = *u.Yaw
	}
	if u.Pitch != nil {
		p.Pitch = *u.Pitch
	}
	if u.HP != nil {
		p.HP = *u.HP
	}
	p.LastUpdate = r.now()
	return true
}

// RemovePlayer deletes the player from the room. When the last player
// leaves, the room itself is deleted and roomEmptied is true.
func (r *Registry) RemovePlayer(code, playerID string) (removed, roomEmptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return false, false
	}
	if _, ok := room.Players[playerID]; !ok {
		return false, false
	}

	delete(room.Players, playerID)
	if len(room.Players) == 0 {
		delete(r.rooms, code)
		return true, true
	}
	return true, false
}

// RemoveBySession finds and removes the player owned by a disconnecting
// transport session. The registry indexes by room and player id, so this is
// a linear scan across all rooms. The emptied room, if any, is deleted as in
// RemovePlayer.
func (r *Registry) RemoveBySession(sessionID string) (code, playerID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomCode, room := range r.rooms {
		for id, p := range room.Players {
			if p.SessionID != sessionID {
				continue
			}
			delete(room.Players, id)
			if len(room.Players) == 0 {
				delete(r.rooms, roomCode)
			}
			return roomCode, id, true
		}
	}
	return "", "", false
}

// Snapshot returns the public view of every player in the room except
// excludingPlayerID. A nil slice comes back for an unknown room; an empty
// one for a room holding only the excluded player. Used to hydrate a joiner.
func (r *Registry) Snapshot(code, excludingPlayerID string) []PlayerView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil
	}

	views := make([]PlayerView, 0, len(room.Players))
	for id, p := range room.Players {
		if id == excludingPlayerID {
			continue
		}
		views = append(views, PlayerView{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			X:          p.X,
			Z:          p.Z,
			HP:         p.HP,
		})
	}
	return views
}

// SweepIdle removes every room whose players have all been silent longer
// than threshold. The room's own age must also exceed the threshold, so a
// just-created room is never reaped before its first join completes. Returns
// the removed room codes.
func (r *Registry) SweepIdle(now time.Time, threshold time.Duration) []string {
	cutoff := now.Add(-threshold)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for code, room := range r.rooms {
		if room.CreatedAt.After(cutoff) {
			continue
		}
		stale := true
		for _, p := range room.Players {
			if p.LastUpdate.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(r.rooms, code)
			removed = append(removed, code)
		}
	}
	return removed
}

// Counts reports the number of active rooms and connected players, for the
// health endpoint and metrics.
func (r *Registry) Counts() (rooms, players int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms = len(r.rooms)
	for _, room := range r.rooms {
		players += len(room.Players)
	}
	return rooms, players
}
