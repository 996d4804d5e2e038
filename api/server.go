package api

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/doommaze/relay/game/registry"
	"github.com/doommaze/relay/metrics"
	ws "github.com/doommaze/relay/transport/websocket"
)

// Server is the relay's HTTP surface: websocket upgrade, health check,
// metrics, and a human-readable status page.
type Server struct {
	registry *registry.Registry
	relay    *ws.Relay
	metrics  *metrics.Metrics
	logger   *zap.Logger
	router   *mux.Router
}

// NewServer creates the HTTP server. metrics may be nil; /metrics is then
// not mounted.
func NewServer(reg *registry.Registry, relay *ws.Relay, m *metrics.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		registry: reg,
		relay:    relay,
		metrics:  m,
		logger:   logger,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.relay.ServeWS)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	s.router.HandleFunc("/", s.handleStatus).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// respondJSON writes data as a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Rooms        int    `json:"rooms"`
	TotalPlayers int    `json:"totalPlayers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, players := s.registry.Counts()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "OK",
		Rooms:        rooms,
		TotalPlayers: players,
	})
}

// statusPage is the human-readable landing page.
var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Doom Maze Server</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #1a1a1a; color: #fff; }
        .container { max-width: 800px; margin: 0 auto; }
        .status { background: #2a2a2a; padding: 20px; border-radius: 10px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Doom Maze Multiplayer Server</h1>
        <div class="status">
            <h2>Server Status: <span style="color: #4CAF50;">Running</span></h2>
            <p>Active Rooms: <strong>{{.Rooms}}</strong></p>
            <p>Total Players: <strong>{{.TotalPlayers}}</strong></p>
        </div>
        <p>Server is ready for connections!</p>
    </div>
</body>
</html>
`))

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rooms, players := s.registry.Counts()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := statusPage.Execute(w, struct {
		Rooms        int
		TotalPlayers int
	}{rooms, players})
	if err != nil {
		s.logger.Warn("status page render failed", zap.Error(err))
	}
}
