package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // zone database for validation.timezone in minimal images

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/subscriber-gateway/internal/api"
	"github.com/ignite/subscriber-gateway/internal/config"
	"github.com/ignite/subscriber-gateway/internal/pkg/distlock"
	"github.com/ignite/subscriber-gateway/internal/pkg/logger"
	"github.com/ignite/subscriber-gateway/internal/pkg/metrics"
	"github.com/ignite/subscriber-gateway/internal/propeller"
	"github.com/ignite/subscriber-gateway/internal/repository/postgres"
	"github.com/ignite/subscriber-gateway/internal/service/subscriber"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dbURL := cfg.URL
	if !strings.Contains(dbURL, "connect_timeout") {
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		dbURL += sep + "connect_timeout=5"
	}
	log.Printf("DB URL host portion: ...@%s/...", extractHost(dbURL))

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Subscriber Gateway (cmd/server/main.go)                   ║")
	log.Println("║  Validated subscriber workflows against the Propeller CRM  ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.Configure(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Redact())

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// CRM gateway
	crm := propeller.NewClient(cfg.Propeller)
	crm.SetMetrics(m)
	log.Printf("Propeller CRM: %s (timeout %s, retries %d)", cfg.Propeller.BaseURL, cfg.Propeller.Timeout(), cfg.Propeller.MaxRetries)

	// Subscriber index: Postgres when configured, in-memory otherwise
	var db *sql.DB
	var index subscriber.Index
	if cfg.Database.Enabled() {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			log.Printf("Warning: database unavailable, using in-memory subscriber index: %v", err)
		} else {
			defer db.Close()
			index = postgres.NewSubscriberIndexRepo(db)
			log.Println("Subscriber index: PostgreSQL")
		}
	}
	if index == nil {
		index = subscriber.NewMemoryIndex()
		log.Println("Subscriber index: in-memory")
	}

	// Create locks: Redis preferred, PG advisory fallback
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = openRedis(ctx, cfg.Redis)
		if err != nil {
			log.Printf("Warning: Redis unavailable: %v", err)
		} else {
			defer redisClient.Close()
			log.Printf("Redis connected: %s", cfg.Redis.Addr)
		}
	}

	// Validate has already resolved the zone.
	ageZone, _ := cfg.Validation.Location()
	opts := []subscriber.Option{
		subscriber.WithMetrics(m),
		subscriber.WithClock(func() time.Time { return time.Now().In(ageZone) }),
	}
	if locker := distlock.NewLocker(redisClient, db, cfg.Redis.LockTTL()); locker != nil {
		opts = append(opts, subscriber.WithLocker(locker))
		log.Println("Create lock: enabled")
	} else {
		log.Println("Create lock: disabled (no Redis or database)")
	}

	svc := subscriber.NewService(crm, index, opts...)
	health := api.NewHealthChecker(crm, db, redisClient).WithIndex(index)
	router := api.SetupRoutes(api.NewHandlers(svc), health, m, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
