package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamesync/internal/api"
	"gamesync/internal/config"
	"gamesync/internal/db"
	"gamesync/internal/models"
	"gamesync/internal/repository"
	"gamesync/internal/services"
	"gamesync/internal/services/collaboration"
	"gamesync/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

/*
LEARNING: GRACEFUL SHUTDOWN PATTERN WITH OBSERVABILITY

collabd runs one collaboration session next to a local game UI:
1. Config from env (.env), then command-line overrides
2. Jaeger tracing, optional snapshot journal in Postgres
3. Session restore + connect
4. Local control API for the UI
5. Graceful shutdown on SIGINT/SIGTERM (close the socket, then the DB)
*/

var version = "dev"

func main() {
	flagSet := pflag.NewFlagSet("collabd", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", "", "load environment variables from this file before .env")
	serverURL := flagSet.String("url", "", "collaboration server WebSocket URL (COLLAB_SERVER_URL)")
	gameID := flagSet.String("game-id", "", "game to join (COLLAB_GAME_ID)")
	userID := flagSet.String("user-id", "", "user id sent with JOIN_GAME (COLLAB_USER_ID)")
	statusAddr := flagSet.String("status-addr", "", "host:port for the local control API")
	journal := flagSet.Bool("journal", false, "persist accepted game states (JOURNAL_ENABLED)")
	disabled := flagSet.Bool("disabled", false, "start with collaboration disabled")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "collabd: %v\n", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("collabd %s\n", version)
		return
	}

	log.Println("🚀 Starting game collaboration daemon...")

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("❌ Failed to load %s: %v", *envFile, err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Flags win over the environment, but only when given
	if flagSet.Changed("url") {
		cfg.ServerURL = *serverURL
	}
	if flagSet.Changed("game-id") {
		cfg.GameID = *gameID
	}
	if flagSet.Changed("user-id") {
		cfg.UserID = *userID
	}
	if flagSet.Changed("journal") {
		cfg.JournalEnabled = *journal
	}
	if flagSet.Changed("disabled") {
		cfg.Enabled = !*disabled
	}
	addr := fmt.Sprintf("%s:%s", cfg.StatusHost, cfg.StatusPort)
	if flagSet.Changed("status-addr") {
		addr = *statusAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Initialize Jaeger tracing
	// Learning: Do this FIRST so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("gamesync-collabd", version, cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	opts := []collaboration.Option{}
	var history api.HistoryService
	var writer *services.JournalWriter

	// Initialize the snapshot journal
	// Learning: Optional - the session works the same without it
	if cfg.JournalEnabled {
		database, err := db.NewGorm(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer database.Close()

		snapshotRepo := repository.NewSnapshotRepository(database.DB)

		// Learning: Writes go through a queue so a slow DB never stalls inbound frames
		writer = services.NewJournalWriter(snapshotRepo, cfg.JournalQueue, 5*time.Second)
		writer.Start()

		opts = append(opts, collaboration.WithJournal(writer, cfg.JournalKeep))
		history = snapshotRepo
	}

	opts = append(opts, collaboration.WithRemoteHandlers(collaboration.RemoteHandlers{
		OnConflict: func(c *models.Conflict) {
			log.Printf("⚔️  Conflict %s: local %d vs remote %d, waiting for a decision",
				c.ID, c.Local.LastModified, c.Remote.LastModified)
		},
		OnError: func(err error) {
			log.Printf("⚠️  Collaboration error: %v", err)
		},
	}))

	session := collaboration.NewSession(sessionConfig(cfg), opts...)

	if cfg.JournalEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := session.Restore(ctx); err != nil {
			log.Printf("⚠️  Failed to restore from journal: %v", err)
		}
		cancel()
	}

	session.Connect()
	log.Printf("✓ Collaboration session for game %s (invite: %s)",
		session.GameID(), session.GenerateInviteLink(""))

	// Initialize handlers with dependency injection
	handler := api.NewHandler(session, history)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("🌐 Control API listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   GET    /api/session             - Session state")
		log.Printf("   POST   /api/game-state          - Broadcast game state")
		log.Printf("   POST   /api/player-actions      - Send player action")
		log.Printf("   POST   /api/expense-actions     - Send expense action")
		log.Printf("   GET    /ws/state                - Live state stream")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Learning: Disconnect stops the reconnect timer before the socket closes
	session.Disconnect()

	// Flush queued journal writes before the DB closes
	if writer != nil {
		writer.Shutdown()
	}

	log.Println("✓ Shutdown complete")
}

// sessionConfig maps the process config onto the session's own Config
func sessionConfig(cfg *config.Config) collaboration.Config {
	sc := collaboration.DefaultConfig(cfg.ServerURL, cfg.GameID)
	sc.UserID = cfg.UserID
	sc.ReconnectInterval = cfg.ReconnectInterval
	sc.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	sc.Enabled = cfg.Enabled
	sc.InviteScheme = cfg.InviteScheme
	return sc
}
