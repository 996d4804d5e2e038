// Command relay starts the Doom Maze relay server.
//
// The server groups websocket clients into rooms keyed by a client-supplied
// room code and rebroadcasts position and combat events between room
// members. It performs no simulation and keeps no durable state; a restart
// drops every room.
//
// Flags control host/port, debug logging, version output, and optional
// ngrok tunneling for easy external access during development. Everything
// else is configured through environment variables (see package config).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/doommaze/relay/api"
	"github.com/doommaze/relay/config"
	"github.com/doommaze/relay/game/reaper"
	"github.com/doommaze/relay/game/registry"
	"github.com/doommaze/relay/metrics"
	"github.com/doommaze/relay/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Doom Maze Relay Server"
)

// Flags override the environment for the values an operator changes most
// often during development.
var (
	port         = flag.Int("port", 0, "HTTP server port (overrides PORT env var)")
	host         = flag.String("host", "", "HTTP server bind address (overrides HOST env var)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  PORT, HOST, SPAWN_RANGE, SWEEP_INTERVAL, IDLE_THRESHOLD, LOG_FORMAT\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Listen on the default port 3000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090      # Listen on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -ngrok          # Also expose the server through an ngrok tunnel\n", os.Args[0])
	}
}

func main() {
	// Load .env file if it exists (ignore error if not found).
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *host != "" {
		cfg.Host = *host
	}

	logger, err := buildLogger(cfg.LogFormat, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting server",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()))

	run(cfg, logger)
}

// buildLogger creates the zap logger for the configured format and level.
func buildLogger(format string, debug bool) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zapCfg.Build()
}

// run wires the registry, relay, reaper, and HTTP server together and
// blocks until a shutdown signal arrives.
func run(cfg config.Config, logger *zap.Logger) {
	reg := registry.New()
	m := metrics.New(reg.Counts)

	relay := websocket.NewRelay(reg, cfg.SpawnRange, m, logger)
	apiServer := api.NewServer(reg, relay, m, logger)

	idleReaper := reaper.New(reg, cfg.SweepInterval, cfg.IdleThreshold, logger)
	idleReaper.OnReap(func(removed []string) {
		m.RoomsReaped.Add(float64(len(removed)))
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		idleReaper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("http server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws", cfg.Addr())),
			zap.String("health", fmt.Sprintf("http://%s/health", cfg.Addr())))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Start ngrok tunnel if enabled (flag or environment).
	ngrokShouldRun := *ngrokEnabled
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}
	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, apiServer, logger)
		}()
	}

	sig := <-stop
	logger.Info("shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
}

// runNgrokTunnel exposes the relay through an ngrok tunnel, for pointing a
// remotely hosted maze client at a locally running server.
func runNgrokTunnel(ctx context.Context, handler http.Handler, logger *zap.Logger) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use -ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", zap.String("domain", domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Warn("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	logger.Info("ngrok tunnel established",
		zap.String("url", tun.URL()),
		zap.String("websocket", tun.URL()+"/ws"))

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}
