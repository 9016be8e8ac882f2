// cmd/api/main.go
// Main entry point for the matching engine
// Bootstraps all components and starts the server

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/common/database"
	"github.com/pairupapp/pairup-backend/internal/common/utils"
	"github.com/pairupapp/pairup-backend/internal/config"
	"github.com/pairupapp/pairup-backend/internal/matching"
	"github.com/pairupapp/pairup-backend/internal/notify"
	"github.com/pairupapp/pairup-backend/internal/profile"
	"github.com/pairupapp/pairup-backend/internal/reputation"
	"github.com/pairupapp/pairup-backend/internal/resilience"
	"github.com/pairupapp/pairup-backend/internal/session"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting PairUp Matching Engine API")
	log.Println("========================================")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Println("✅ Configuration loaded")

	// 3. Connect to PostgreSQL
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL")

	// 4. Connect to Redis (optional; caching and shared counters degrade
	// gracefully without it)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing without it", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis")
		}
	}

	// 5. Run database migrations
	if err := runMigrations(db); err != nil {
		log.Fatal("❌ Failed to run migrations: ", err)
	}
	log.Println("✅ Database migrations completed")

	// 6. Resilience layer
	var counterStore resilience.CounterStore
	if redisClient != nil {
		counterStore = resilience.NewRedisCounterStore(redisClient)
	} else {
		counterStore = resilience.NewMemoryCounterStore()
	}

	profileBreaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:          "profile_store",
		FailureLimit:  int64(cfg.BreakerFailureLimit),
		FailureWindow: cfg.BreakerFailureWindow,
		Cooldown:      cfg.BreakerCooldown,
	}, counterStore)

	limiter := resilience.NewRateLimiter(map[string]resilience.BucketConfig{
		resilience.ClassMatchCreate:    {Capacity: cfg.MatchCreateCapacity, RefillPerSec: cfg.MatchCreateRefillRate},
		resilience.ClassConfirm:        {Capacity: cfg.ConfirmCapacity, RefillPerSec: cfg.ConfirmRefillRate},
		resilience.ClassReputationRead: {Capacity: cfg.ReputationCapacity, RefillPerSec: cfg.ReputationRefillRate},
	})
	log.Println("✅ Resilience layer initialized")

	// 7. Notification dispatcher (fire-and-forget)
	var dispatcher notify.Dispatcher
	if redisClient != nil {
		dispatcher = notify.NewRedisDispatcher(redisClient, cfg.EventChannel)
	} else {
		dispatcher = notify.NewLogDispatcher()
	}

	// 8. Profile/location store (external collaborator, read-only)
	profileRepo := profile.NewPostgresRepository(db)
	profileStore := profile.NewStore(profileRepo, profileBreaker, resilience.RetryConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}, cfg.ProfileStoreTimeout)

	// 9. Reputation
	var reputationCache reputation.Cache
	if redisClient != nil {
		reputationCache = reputation.NewRedisCache(redisClient, cfg.ReputationCacheTTL)
	} else {
		reputationCache = reputation.NewNoopCache()
	}
	reputationRepo := reputation.NewPostgresRepository(db)
	reputationService := reputation.NewService(reputationRepo, reputationCache, reputation.Config{
		MinScore: cfg.MinReputationScore,
		MaxScore: cfg.MaxReputationScore,
	})

	// 10. Matching
	matchRepo := matching.NewPostgresRepository(db)
	finder := matching.NewFinder(profileStore, cfg.CandidateLimit)
	matchingService := matching.NewService(matchRepo, finder, profileStore, dispatcher, matching.Config{
		DefaultRadiusKm: cfg.DefaultRadiusKm,
		MinRadiusKm:     cfg.MinRadiusKm,
		MaxRadiusKm:     cfg.MaxRadiusKm,
		RecencyWindow:   cfg.RecencyWindow,
		PendingMatchTTL: cfg.PendingMatchTTL,
	})

	// 11. Sessions
	sessionRepo := session.NewPostgresRepository(db)
	sessionService := session.NewService(sessionRepo, matchRepo, reputationService, dispatcher, session.Config{
		MaxNotesLength: cfg.MaxNotesLength,
	})
	log.Println("✅ Services initialized")

	// 12. Router and routes
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	matching.RegisterRoutes(router, matching.NewHandler(matchingService), authMiddleware, limiter)
	session.RegisterRoutes(router, session.NewHandler(sessionService), authMiddleware, limiter)
	reputation.RegisterRoutes(router, reputation.NewHandler(reputationService), authMiddleware, limiter)
	log.Println("✅ Routes registered")

	// 13. Background scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go matching.NewScheduler(matchingService, time.Hour).Start(schedulerCtx)

	// 14. Start server with graceful shutdown
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌍 Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown error: %v", err)
	}
	log.Println("✅ Server stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pairup-matching-engine",
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.RequestURI, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations creates the engine-owned tables. The user_location_profiles
// table belongs to the profile service; it is created here too so local
// development works against a single database.
func runMigrations(db *sqlx.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS user_location_profiles (
        user_id          BIGINT PRIMARY KEY,
        display_name     TEXT NOT NULL DEFAULT '',
        city             TEXT,
        latitude         DOUBLE PRECISION,
        longitude        DOUBLE PRECISION,
        city_only        BOOLEAN NOT NULL DEFAULT FALSE,
        experience_level SMALLINT CHECK (experience_level BETWEEN 1 AND 3),
        archetype        TEXT,
        max_radius_km    DOUBLE PRECISION NOT NULL DEFAULT 25,
        updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );

    CREATE TABLE IF NOT EXISTS matches (
        id           BIGSERIAL PRIMARY KEY,
        user1_id     BIGINT NOT NULL,
        user2_id     BIGINT NOT NULL,
        status       TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'accepted', 'declined', 'expired')),
        created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        responded_at TIMESTAMPTZ,
        CHECK (user1_id < user2_id)
    );

    -- One live match per unordered pair; the canonical column order makes
    -- the pair unique without a second permutation row
    CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_active_pair
        ON matches (user1_id, user2_id)
        WHERE status IN ('pending', 'accepted');

    -- At most one pending match per user. Two single-column indexes because
    -- a participant can sit in either canonical position; inserts that trip
    -- them are resolved by re-reading the holder's pending match
    CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_user1_pending
        ON matches (user1_id)
        WHERE status = 'pending';
    CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_user2_pending
        ON matches (user2_id)
        WHERE status = 'pending';

    CREATE INDEX IF NOT EXISTS idx_matches_user1 ON matches (user1_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_matches_user2 ON matches (user2_id, created_at);

    CREATE TABLE IF NOT EXISTS sessions (
        id                 BIGSERIAL PRIMARY KEY,
        match_id           BIGINT NOT NULL REFERENCES matches (id),
        user1_id           BIGINT NOT NULL,
        user2_id           BIGINT NOT NULL,
        venue              TEXT NOT NULL,
        scheduled_at       TIMESTAMPTZ NOT NULL,
        status             TEXT NOT NULL DEFAULT 'scheduled'
                           CHECK (status IN ('scheduled', 'completed', 'cancelled')),
        confirmed_by_user1 BOOLEAN NOT NULL DEFAULT FALSE,
        confirmed_by_user2 BOOLEAN NOT NULL DEFAULT FALSE,
        notes              TEXT,
        no_show_user_id    BIGINT,
        completed_at       TIMESTAMPTZ,
        created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );

    -- One active (non-cancelled) session per match
    CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_match
        ON sessions (match_id)
        WHERE status <> 'cancelled';

    CREATE INDEX IF NOT EXISTS idx_sessions_user1 ON sessions (user1_id);
    CREATE INDEX IF NOT EXISTS idx_sessions_user2 ON sessions (user2_id);
    `

	_, err := db.Exec(schema)
	return err
}
