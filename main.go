// Command study-time-tracker is the main entrypoint for the live study
// session tracker. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the poll loop against the configured chat feed (YouTube live
//     chat or Twitch IRC) and the OAuth token refresher.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics and
//     session views for stream overlays.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/joho/godotenv"

	"github.com/aew2sbee/study-time-tracker/config"
	"github.com/aew2sbee/study-time-tracker/db"
	"github.com/aew2sbee/study-time-tracker/dispatch"
	"github.com/aew2sbee/study-time-tracker/oauth"
	"github.com/aew2sbee/study-time-tracker/server"
	"github.com/aew2sbee/study-time-tracker/session"
	"github.com/aew2sbee/study-time-tracker/telemetry"
	"github.com/aew2sbee/study-time-tracker/tracker"
	"github.com/aew2sbee/study-time-tracker/twitchchat"
	"github.com/aew2sbee/study-time-tracker/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("study-time-tracker", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; embedded SQL as fallback for deployments
	// predating the schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenStore := &db.TokenStoreAdapter{DB: database}

	// Chat feed + outbound transport share a client per source.
	var source tracker.EventSource
	var transport dispatch.Transport
	switch cfg.ChatSource {
	case "twitch":
		if err := cfg.ValidateTwitchReady(); err != nil {
			slog.Error("twitch feed not configured", slog.Any("err", err))
			os.Exit(1)
		}
		tw := twitchchat.NewSource(cfg)
		go func() {
			if err := tw.Run(ctx); err != nil {
				slog.Error("twitch chat exited", slog.Any("err", err))
			}
		}()
		source = tw
		transport = tw
	default: // youtube
		if err := cfg.ValidateYouTubeReady(); err != nil {
			slog.Error("youtube feed not configured", slog.Any("err", err))
			os.Exit(1)
		}
		yt := youtubeapi.New(cfg, tokenStore)
		source = youtubeapi.NewSource(yt)
		transport = youtubeapi.NewSender(yt)

		// Centralized OAuth token refresher
		oauth.StartRefresher(ctx, tokenStore, "youtube", 10*time.Minute, 20*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, error) {
			oc := &oauth2.Config{ClientID: cfg.YTClientID, ClientSecret: cfg.YTClientSecret, Endpoint: google.Endpoint, RedirectURL: cfg.YTRedirectURI}
			newTok, err := oc.TokenSource(rctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
			if err != nil {
				return "", "", time.Time{}, err
			}
			return newTok.AccessToken, newTok.RefreshToken, newTok.Expiry, nil
		})
	}

	store := session.NewStore()
	queue := dispatch.NewQueue(transport, cfg.SendDelay)
	trk := tracker.New(cfg, store, queue, db.NewRepo(database), source)
	go trk.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics/session views)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, cfg, trk, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")

	// Best effort: flush queued acknowledgements before exit.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	queue.Drain(drainCtx)
}
