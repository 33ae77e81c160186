package main

// @title           Drivelink API
// @version         1.0
// @description     Links external storage accounts to local users and keeps their file listings in sync.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/auth"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/googledrive"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/memory"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/drivelink/internal/adapters/driven/redis"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/secrets"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/drivelink/internal/adapters/driving/http"
	"github.com/custodia-labs/drivelink/internal/config"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/services"
	"github.com/custodia-labs/drivelink/internal/worker"
)

var version = "dev"

// stores groups the persistence adapters chosen at startup.
type stores struct {
	accounts driven.CredentialStore
	files    driven.FileStore
	nonces   driven.NonceLedger
	lock     driven.DistributedLock
	health   http.Pinger
	close    func()
}

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	log.Printf("drivelink %s starting in %s mode (store=%s)", version, mode, cfg.StoreBackend)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Secrets =====
	encryptor, err := secrets.NewEncryptorFromHex(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Invalid ENCRYPTION_KEY: %v", err)
	}
	stateKey, err := auth.DeriveKey([]byte(cfg.StateSecret), auth.PurposeStateToken)
	if err != nil {
		log.Fatalf("Failed to derive state key: %v", err)
	}

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err = redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// Consumed nonces must outlive the states that carry them.
	nonceRetention := max(cfg.StateTTL(), time.Hour)

	// ===== Stores =====
	st, err := openStores(ctx, cfg, encryptor, nonceRetention)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer st.close()

	// ===== Nonce ledger and lock (Redis if available) =====
	var redisHealth http.Pinger
	switch {
	case cfg.NonceBackend == "memory":
		st.nonces = memory.NewNonceLedger(nonceRetention)
		log.Println("Using in-process nonce ledger (single instance only)")
	case redisClient != nil:
		st.nonces = redisadapter.NewNonceLedger(redisClient, nonceRetention)
		log.Println("Using Redis nonce ledger")
	default:
		log.Printf("Using %s nonce ledger", cfg.StoreBackend)
	}
	if redisClient != nil {
		redisLock := redisadapter.NewLock(redisClient)
		st.lock = redisLock
		redisHealth = redisLock
		log.Println("Using Redis distributed lock")
	}

	// ===== Provider =====
	provider := googledrive.NewProvider(googledrive.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL(),
	})
	storage := googledrive.NewAPI(googledrive.DefaultBaseURL)

	// ===== Services =====
	codec, err := services.NewStateCodec(services.StateCodecConfig{
		Secret: stateKey,
		TTL:    cfg.StateTTL(),
	})
	if err != nil {
		log.Fatalf("Failed to create state codec: %v", err)
	}

	rotation := services.NewRotationListener(st.accounts, logger)
	runner := services.NewRunner(services.RunnerConfig{
		Accounts: st.accounts,
		Provider: provider,
		Rotation: rotation,
		Logger:   logger,
	})
	stats := services.NewStatsAggregator(st.accounts, st.files)

	authService := services.NewAuthService(auth.NewAdapter([]byte(cfg.JWTSecret)))
	linkService := services.NewLinkService(services.LinkServiceConfig{
		Codec:    codec,
		Nonces:   st.nonces,
		Accounts: st.accounts,
		Provider: provider,
		Storage:  storage,
		Logger:   logger,
	})
	accountService := services.NewAccountService(services.AccountServiceConfig{
		Accounts: st.accounts,
		Files:    st.files,
		Storage:  storage,
		Runner:   runner,
		Stats:    stats,
		Logger:   logger,
	})
	syncService := services.NewSyncService(services.SyncServiceConfig{
		Accounts:    st.accounts,
		Files:       st.files,
		Storage:     storage,
		Runner:      runner,
		Concurrency: cfg.SyncConcurrency,
		Logger:      logger,
	})

	w := worker.NewWorker(worker.WorkerConfig{
		Ledger:        st.nonces,
		Sync:          syncService,
		Lock:          st.lock,
		Logger:        logger,
		SweepInterval: cfg.NonceSweepInterval(),
		SyncInterval:  cfg.SyncInterval(),
	})

	server := http.NewServer(
		http.Config{
			Host:           "0.0.0.0",
			Port:           cfg.Port,
			Version:        version,
			FrontendURL:    cfg.FrontendURL,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
		},
		authService,
		linkService,
		accountService,
		syncService,
		st.health,
		redisHealth,
	)

	switch mode {
	case "api":
		runAPI(ctx, server)
	case "worker":
		runWorkerMode(ctx, w)
	case "all":
		go runWorkerMode(ctx, w)
		runAPI(ctx, server)
	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, or all)", mode)
	}
}

// openStores connects the configured backend. The store's own nonce ledger
// and lock are the defaults; Redis replaces them when configured.
func openStores(ctx context.Context, cfg config.Config, encryptor *secrets.Encryptor, nonceRetention time.Duration) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		log.Printf("Opening SQLite database at %s...", cfg.SQLitePath)
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			accounts: sqlite.NewAccountStore(db, encryptor),
			files:    sqlite.NewFileStore(db),
			nonces:   sqlite.NewNonceLedger(db, nonceRetention),
			health:   sqlite.NewPinger(db),
			close:    func() { _ = sqlite.Close(db) },
		}, nil

	default:
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
		dbConfig.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", dbConfig.MaxOpenConns)
		dbConfig.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", dbConfig.MaxIdleConns)

		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Println("PostgreSQL connected and schema initialized")
		return &stores{
			accounts: postgres.NewAccountStore(db, encryptor),
			files:    postgres.NewFileStore(db),
			nonces:   postgres.NewNonceLedger(db, nonceRetention),
			lock:     postgres.NewLeaseLock(db),
			health:   db,
			close:    func() { _ = db.Close() },
		}, nil
	}
}

func runAPI(ctx context.Context, server *http.Server) {
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode runs the background jobs until ctx is cancelled.
func runWorkerMode(ctx context.Context, w *worker.Worker) {
	log.Println("Starting worker...")
	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
