package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	mathrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PriceArena/internal/feed"
	"PriceArena/internal/game"
	"PriceArena/internal/observability"
	"PriceArena/internal/orchestrator"
	"PriceArena/internal/server"
	"PriceArena/internal/transport"
)

// Config holds all node configuration, loaded from environment variables.
type Config struct {
	// NATS
	NATSURL string
	Channel string

	// Participant identity
	Name string
	Team string

	// Game loop
	TickPeriod  time.Duration
	FeedURL     string
	FeedTimeout time.Duration

	// HTTP/Metrics
	HTTPAddr    string
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		NATSURL:     envOrDefault("ARENA_NATS_URL", "nats://localhost:4222"),
		Channel:     envOrDefault("ARENA_CHANNEL", "main"),
		Name:        envOrDefault("ARENA_NAME", ""),
		Team:        envOrDefault("ARENA_TEAM", ""),
		TickPeriod:  envDurationOrDefault("ARENA_TICK_PERIOD", orchestrator.DefaultTickPeriod),
		FeedURL:     envOrDefault("ARENA_FEED_URL", feed.DefaultSpotURL),
		FeedTimeout: envDurationOrDefault("ARENA_FEED_TIMEOUT", orchestrator.DefaultFeedTimeout),
		HTTPAddr:    envOrDefault("ARENA_HTTP_ADDR", ":8080"),
		MetricsAddr: envOrDefault("ARENA_METRICS_ADDR", ":9091"),
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: arena node starting...")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: load .env: %v", err)
	}

	cfg := DefaultConfig()
	self := buildSelf(cfg)
	clock := clockwork.NewRealClock()

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- NATS ---
	nc, err := transport.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	tr := transport.NewNATS(nc, cfg.Channel, clock, observability.NewLogger("transport"))

	// --- Price feed ---
	priceFeed := feed.New(
		&http.Client{Timeout: cfg.FeedTimeout},
		observability.NewLogger("feed"),
		feed.WithURL(cfg.FeedURL),
	)

	// --- Orchestrator ---
	orch := orchestrator.New(orchestrator.Config{
		Self:        self,
		Transport:   tr,
		Feed:        priceFeed,
		Clock:       clock,
		Log:         observability.NewLogger("orchestrator"),
		Metrics:     metrics,
		TickPeriod:  cfg.TickPeriod,
		FeedTimeout: cfg.FeedTimeout,
	})

	errChan := make(chan error, 4)

	// 1. Game loop (subscribes + tracks presence on its way in)
	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("orchestrator: %w", err)
		}
	}()

	// 2. HTTP/WS surface
	apiServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(orch, healthChecker, metrics, clock, observability.NewLogger("server")).Router(),
	}
	go func() {
		log.Printf("INFO: API listening on %s", cfg.HTTPAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	// 3. Prometheus metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Printf("INFO: metrics listening on %s/metrics", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Printf("INFO: arena node ready (id=%s, name=%s, team=%s, channel=%s)",
		self.ID, self.Name, self.Team, cfg.Channel)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	healthChecker.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: api shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: metrics shutdown: %v", err)
	}

	log.Println("INFO: arena node shutdown complete")
}

// buildSelf assembles the local participant. Name defaults to a short form
// of the id; team is assigned randomly when not pinned, mirroring how the
// arena balances squads.
func buildSelf(cfg Config) game.Participant {
	id := uuid.New().String()

	name := cfg.Name
	if name == "" {
		name = "pilot-" + id[:8]
	}

	var team game.Team
	switch game.Team(cfg.Team) {
	case game.TeamAlpha:
		team = game.TeamAlpha
	case game.TeamBeta:
		team = game.TeamBeta
	default:
		if mathrand.Intn(2) == 0 {
			team = game.TeamAlpha
		} else {
			team = game.TeamBeta
		}
	}

	return game.Participant{ID: id, Name: name, Team: team}
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
