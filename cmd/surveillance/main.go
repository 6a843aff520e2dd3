package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/penang-gov/surveillance/internal/auth"
	caseapi "github.com/penang-gov/surveillance/internal/case/api"
	caseinfra "github.com/penang-gov/surveillance/internal/case/infrastructure"
	"github.com/penang-gov/surveillance/internal/geocoder"
	"github.com/penang-gov/surveillance/internal/lims"
	"github.com/penang-gov/surveillance/internal/linelist"
	"github.com/penang-gov/surveillance/internal/notification"
	"github.com/penang-gov/surveillance/internal/shared/config"
	"github.com/penang-gov/surveillance/internal/shared/database"
	"github.com/penang-gov/surveillance/internal/shared/events"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
	secmiddleware "github.com/penang-gov/surveillance/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	LIMS   *lims.Adapter
}

func main() {
	ctx := context.Background()

	// Optional .env file for local development
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") != "production" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	app := &App{Config: cfg}

	// Database (optional; the service degrades when unavailable)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, running in limited mode")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Warn().Err(err).Msg("migration failed")
		}
	}

	// Event bus (optional)
	bus, err := events.NewBus(cfg.EventStore, log)
	if err != nil {
		log.Warn().Err(err).Msg("event store not available, running without event streaming")
	} else {
		app.Bus = bus
		defer bus.Close()
		log.Info().Msg("event bus initialized")
	}

	// Session store: Redis when configured, in-memory otherwise
	var sessionStore auth.Store
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis not available, using in-memory sessions")
			sessionStore = auth.NewMemoryStore()
		} else {
			sessionStore = auth.NewRedisStore(redisClient)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("redis session store initialized")
		}
	} else {
		sessionStore = auth.NewMemoryStore()
	}

	authService, err := auth.NewService(cfg.Auth, sessionStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth service")
	}

	var busIface events.EventBus
	if app.Bus != nil {
		busIface = app.Bus
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(20, 40)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(authService))

		authHandler := auth.NewHandler(authService)
		r.With(rateLimiter.Middleware).Mount("/auth", authHandler.Routes())

		if app.DB != nil {
			caseRepo := caseinfra.NewPostgresRepository(app.DB.Pool)

			caseHandler := caseapi.NewHandler(caseRepo, busIface)
			r.Mount("/cases", caseHandler.Routes())

			linelistHandler := linelist.NewHandler(caseRepo)
			r.Mount("/linelist", linelistHandler.Routes())

			// LIMS adapter imports state lab results into pending cases
			if cfg.LIMS.Enabled {
				importer := lims.NewCaseImporter(caseRepo, busIface, log)
				app.LIMS = lims.New(cfg.LIMS, importer, log)
				if err := app.LIMS.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("LIMS adapter failed to start")
					app.LIMS = nil
				}
			}
		}

		if cfg.Geocoder.Enabled {
			geoClient := geocoder.NewClient(cfg.Geocoder)
			geoHandler := geocoder.NewHandler(geoClient)
			r.Mount("/geocode", geoHandler.Routes())
		}
	})

	// Duty notifications ride on the event bus
	if cfg.Notification.Enabled && app.Bus != nil {
		var sender notification.Sender
		if cfg.Notification.WebhookURL != "" {
			sender = notification.NewWebhookSender(cfg.Notification)
		} else {
			sender = notification.NewLogSender(log)
		}
		notifier := notification.NewNotifier(app.Bus, sender, log)
		if err := notifier.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("notifier failed to start")
		} else {
			log.Info().Msg("duty notifier started")
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.LIMS != nil {
			if err := app.LIMS.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("LIMS adapter shutdown error")
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("lims", cfg.LIMS.Enabled).
		Bool("geocoder", cfg.Geocoder.Enabled).
		Msg("Penang measles surveillance service started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Penang Measles Surveillance",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.LIMS != nil {
			if err := app.LIMS.Health(r.Context()); err != nil {
				checks["lims"] = "not ready: " + err.Error()
			} else {
				checks["lims"] = "ready"
			}
		} else {
			checks["lims"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
