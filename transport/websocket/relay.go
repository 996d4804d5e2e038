package websocket

import (
	"math/rand"
	"net/http"

	"go.uber.org/zap"

	"github.com/doommaze/relay/game/registry"
	"github.com/doommaze/relay/metrics"
)

// Relay ties the transport hub to the room registry. It is the factory for
// per-connection session handlers and the http.Handler for /ws.
type Relay struct {
	registry *registry.Registry
	hub      *Hub
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// spawnRange is the half-width of the spawn scatter box. Spawns are
	// uniform on [-spawnRange, spawnRange) per axis; the server knows no
	// maze geometry, so this is an arbitrary scatter.
	spawnRange float64

	// randFloat yields values on [0, 1). Swapped out in tests for
	// deterministic spawns.
	randFloat func() float64
}

// NewRelay creates a relay over the given registry. metrics may be nil (no
// instrumentation, used by tests).
func NewRelay(reg *registry.Registry, spawnRange float64, m *metrics.Metrics, logger *zap.Logger) *Relay {
	return &Relay{
		registry:   reg,
		hub:        NewHub(logger),
		logger:     logger,
		metrics:    m,
		spawnRange: spawnRange,
		randFloat:  rand.Float64,
	}
}

// ServeWS handles websocket upgrade requests on /ws.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request) {
	r.hub.serveWS(w, req, r.newSession)
}

func (r *Relay) newSession(client *Client) *Session {
	return &Session{
		relay:  r,
		client: client,
		logger: r.logger.With(zap.String("session", client.sessionID)),
	}
}

// spawnPosition scatters a new player inside the configured bounds.
func (r *Relay) spawnPosition() (x, z float64) {
	x = r.randFloat()*2*r.spawnRange - r.spawnRange
	z = r.randFloat()*2*r.spawnRange - r.spawnRange
	return x, z
}

// countEvent records a relayed event when instrumentation is wired.
func (r *Relay) countEvent(event string) {
	if r.metrics != nil {
		r.metrics.EventsRelayed.WithLabelValues(event).Inc()
	}
}
