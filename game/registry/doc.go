// Package registry provides the in-memory room and player registry for the
// relay server.
//
// The registry package implements:
//   - Room creation keyed by client-supplied room codes
//   - Player records with last-reported position, orientation, and hp
//   - Session-to-player lookup for disconnect cleanup
//   - Room snapshots for hydrating newly joined clients
//   - Idle-room sweeping for the background reaper
//
// Ownership:
//
// The Registry exclusively owns all Room and Player records. Transport
// sessions hold only identifiers (room code, player id, session id) and go
// through the registry for every read or write. Cross-player effects travel
// as broadcasts, never as direct writes to another session's player.
//
// Concurrency:
//
// All operations are safe for concurrent use. A single registry-wide lock
// serializes mutations; join, move, and disconnect for different sessions in
// the same room may race and each operation appears atomic to the others.
//
// Trust model:
//
// The registry stores whatever clients report. Position and hp are never
// validated or simulated server-side; the relay trusts its clients by
// design.
//
// Usage:
//
//	reg := registry.New()
//	reg.EnsureRoom("ABCD")
//	reg.AddPlayer("ABCD", &registry.Player{ID: "p1", Name: "Alice", HP: 100})
//
//	// Later, on disconnect:
//	code, playerID, ok := reg.RemoveBySession(sessionID)
package registry
