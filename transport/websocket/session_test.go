package websocket

import (
	"encoding/json"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/doommaze/relay/game/registry"
)

// testRelay builds a relay with a deterministic spawn generator and no
// metrics, plus a helper to attach in-process clients.
func testRelay() *Relay {
	reg := registry.New()
	r := NewRelay(reg, 50, nil, zap.NewNop())
	r.randFloat = func() float64 { return 0.5 } // spawn always lands on (0, 0)
	return r
}

func attachSession(r *Relay, sessionID string) *Session {
	client := &Client{
		hub:       r.hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
	client.session = r.newSession(client)
	return client.session
}

func send(t *testing.T, s *Session, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	s.handleMessage(raw)
}

// drain empties the client's queue and returns the decoded envelopes.
func drain(t *testing.T, s *Session) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw := <-s.client.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("received undecodable message %q: %v", raw, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func lastEvent(t *testing.T, s *Session, want string) Envelope {
	t.Helper()
	events := drain(t, s)
	if len(events) == 0 {
		t.Fatalf("expected a %s event, queue was empty", want)
	}
	env := events[len(events)-1]
	if env.Event != want {
		t.Fatalf("expected event %s, got %s", want, env.Event)
	}
	return env
}

func TestJoinRepliesWithEmptyRoomState(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1", PlayerName: "Alice"})

	env := lastEvent(t, a, EventRoomState)
	var state []registry.PlayerView
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode roomState: %v", err)
	}
	if len(state) != 0 {
		t.Errorf("First joiner should get an empty roomState, got %v", state)
	}

	rooms, players := r.registry.Counts()
	if rooms != 1 || players != 1 {
		t.Errorf("Expected 1 room, 1 player, got %d/%d", rooms, players)
	}
}

func TestSecondJoinerNotifiesPeersAndGetsSnapshot(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1", PlayerName: "Alice"})
	drain(t, a)

	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2", PlayerName: "Bob"})

	// A sees playerJoined for p2.
	env := lastEvent(t, a, EventPlayerJoined)
	var joined PlayerJoinedEvent
	if err := json.Unmarshal(env.Data, &joined); err != nil {
		t.Fatalf("decode playerJoined: %v", err)
	}
	if joined.PlayerID != "p2" || joined.PlayerName != "Bob" || joined.HP != 100 {
		t.Errorf("Unexpected playerJoined payload: %+v", joined)
	}

	// B's roomState holds exactly p1.
	env = lastEvent(t, b, EventRoomState)
	var state []registry.PlayerView
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode roomState: %v", err)
	}
	if len(state) != 1 || state[0].PlayerID != "p1" || state[0].HP != 100 {
		t.Errorf("Expected roomState [p1], got %v", state)
	}
}

func TestMoveRelaysWithoutEcho(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	yaw := 1.57
	send(t, a, EventPlayerMove, PlayerMovePayload{X: 5, Z: 5, Yaw: &yaw})

	if events := drain(t, a); len(events) != 0 {
		t.Errorf("Mover received its own echo: %v", events)
	}

	env := lastEvent(t, b, EventPlayerMoved)
	var moved PlayerMovedEvent
	if err := json.Unmarshal(env.Data, &moved); err != nil {
		t.Fatalf("decode playerMoved: %v", err)
	}
	if moved.PlayerID != "p1" || moved.X != 5 || moved.Z != 5 {
		t.Errorf("Unexpected playerMoved payload: %+v", moved)
	}
	if moved.Yaw == nil || *moved.Yaw != 1.57 {
		t.Errorf("Yaw not relayed: %+v", moved)
	}
	if moved.Pitch != nil {
		t.Errorf("Pitch should be omitted when unreported, got %v", *moved.Pitch)
	}

	// Registry reflects the move.
	snap := r.registry.Snapshot("ABCD", "p2")
	if len(snap) != 1 || snap[0].X != 5 || snap[0].Z != 5 {
		t.Errorf("Registry missed the move: %v", snap)
	}
}

func TestEventsBeforeJoinAreDropped(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")

	send(t, a, EventPlayerMove, PlayerMovePayload{X: 5, Z: 5})
	send(t, a, EventPlayerShoot, PlayerShootPayload{})
	send(t, a, EventPlayerDeath, PlayerDeathPayload{})

	if events := drain(t, a); len(events) != 0 {
		t.Errorf("Unjoined session received responses: %v", events)
	}
	if rooms, _ := r.registry.Counts(); rooms != 0 {
		t.Errorf("Unjoined events mutated the registry")
	}
}

func TestUnknownAndMalformedEventsAreDropped(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")
	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	a.handleMessage([]byte(`not json at all`))
	a.handleMessage([]byte(`{"event":"teleport","data":{}}`))
	a.handleMessage([]byte(`{"event":"playerMove","data":"not-an-object"}`))

	if events := drain(t, b); len(events) != 0 {
		t.Errorf("Garbage input produced broadcasts: %v", events)
	}
}

func TestDamageOverwritesTargetHP(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")
	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	// B reports damage against A's player; the relay trusts it.
	send(t, b, EventPlayerDamage, PlayerDamagePayload{PlayerID: "p1", Damage: 25, HP: 75})

	env := lastEvent(t, a, EventPlayerDamage)
	var dmg PlayerDamageEvent
	if err := json.Unmarshal(env.Data, &dmg); err != nil {
		t.Fatalf("decode playerDamage: %v", err)
	}
	if dmg.PlayerID != "p1" || dmg.HP != 75 {
		t.Errorf("Unexpected playerDamage payload: %+v", dmg)
	}

	snap := r.registry.Snapshot("ABCD", "p2")
	if len(snap) != 1 || snap[0].HP != 75 {
		t.Errorf("Registry hp not overwritten: %v", snap)
	}
}

func TestDeathKeepsPlayerRegistered(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")
	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	send(t, a, EventPlayerDeath, PlayerDeathPayload{PlayerID: "p1"})

	env := lastEvent(t, b, EventPlayerDeath)
	var death PlayerDeathEvent
	if err := json.Unmarshal(env.Data, &death); err != nil {
		t.Fatalf("decode playerDeath: %v", err)
	}
	if death.PlayerID != "p1" {
		t.Errorf("Unexpected playerDeath payload: %+v", death)
	}

	// Ghost until disconnect: the dead player can still move.
	_, players := r.registry.Counts()
	if players != 2 {
		t.Errorf("Death removed the player from the registry, %d left", players)
	}
	send(t, a, EventPlayerMove, PlayerMovePayload{X: 9, Z: 9})
	if env := lastEvent(t, b, EventPlayerMoved); env.Event != EventPlayerMoved {
		t.Error("Dead player's move was not relayed")
	}
}

func TestEnemyKilledIsPureFanOut(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")
	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	send(t, a, EventEnemyKilled, EnemyKilledPayload{EnemyID: "imp-7"})

	env := lastEvent(t, b, EventEnemyKilled)
	var killed EnemyKilledEvent
	if err := json.Unmarshal(env.Data, &killed); err != nil {
		t.Fatalf("decode enemyKilled: %v", err)
	}
	if killed.EnemyID != "imp-7" {
		t.Errorf("Unexpected enemyKilled payload: %+v", killed)
	}
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")
	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, b)

	a.disconnect()

	env := lastEvent(t, b, EventPlayerLeft)
	var left PlayerLeftEvent
	if err := json.Unmarshal(env.Data, &left); err != nil {
		t.Fatalf("decode playerLeft: %v", err)
	}
	if left.PlayerID != "p1" {
		t.Errorf("Unexpected playerLeft payload: %+v", left)
	}

	_, players := r.registry.Counts()
	if players != 1 {
		t.Errorf("Expected 1 player after disconnect, got %d", players)
	}

	// A second disconnect for the same session finds nothing and stays
	// silent.
	a.disconnect()
	if events := drain(t, b); len(events) != 0 {
		t.Errorf("Repeated disconnect produced broadcasts: %v", events)
	}
}

func TestRejoinSameIDOverwrites(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	b := attachSession(r, "sB")

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1", PlayerName: "First"})
	send(t, b, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1", PlayerName: "Second"})

	_, players := r.registry.Counts()
	if players != 1 {
		t.Fatalf("Expected exactly one entry for p1, got %d players", players)
	}

	snap := r.registry.Snapshot("ABCD", "")
	if snap[0].PlayerName != "Second" {
		t.Errorf("Expected the second join to win, got %+v", snap[0])
	}
}

func TestJoinDifferentRoomLeavesFirst(t *testing.T) {
	r := testRelay()
	a := attachSession(r, "sA")
	peer := attachSession(r, "sPeer")

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p1"})
	send(t, peer, EventJoinRoom, JoinRoomPayload{RoomCode: "ABCD", PlayerID: "p2"})
	drain(t, a)
	drain(t, peer)

	send(t, a, EventJoinRoom, JoinRoomPayload{RoomCode: "WXYZ", PlayerID: "p1"})

	env := lastEvent(t, peer, EventPlayerLeft)
	var left PlayerLeftEvent
	if err := json.Unmarshal(env.Data, &left); err != nil {
		t.Fatalf("decode playerLeft: %v", err)
	}
	if left.PlayerID != "p1" {
		t.Errorf("Old room not told about the departure: %+v", left)
	}

	snap := r.registry.Snapshot("WXYZ", "")
	if len(snap) != 1 || snap[0].PlayerID != "p1" {
		t.Errorf("Player not registered in the new room: %v", snap)
	}
	if old := r.registry.Snapshot("ABCD", ""); len(old) != 1 || old[0].PlayerID != "p2" {
		t.Errorf("Old room should hold only p2: %v", old)
	}
}

func TestSpawnPositionWithinBounds(t *testing.T) {
	reg := registry.New()
	r := NewRelay(reg, 50, nil, zap.NewNop())

	for i := 0; i < 1000; i++ {
		x, z := r.spawnPosition()
		if x < -50 || x >= 50 || z < -50 || z >= 50 {
			t.Fatalf("Spawn %d out of bounds: (%v, %v)", i, x, z)
		}
	}
}

func TestManyJoinersEachGetFullSnapshot(t *testing.T) {
	r := testRelay()

	for i := 0; i < 8; i++ {
		s := attachSession(r, fmt.Sprintf("s%d", i))
		send(t, s, EventJoinRoom, JoinRoomPayload{
			RoomCode: "ABCD",
			PlayerID: fmt.Sprintf("p%d", i),
		})

		env := lastEvent(t, s, EventRoomState)
		var state []registry.PlayerView
		if err := json.Unmarshal(env.Data, &state); err != nil {
			t.Fatalf("decode roomState: %v", err)
		}
		if len(state) != i {
			t.Errorf("Joiner %d: expected %d players in roomState, got %d", i, i, len(state))
		}
	}
}
