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
	"syscall"
	"time"

	"github.com/beaivisible/discovery-engine/internal/api"
	"github.com/beaivisible/discovery-engine/internal/config"
	"github.com/beaivisible/discovery-engine/internal/icp"
	"github.com/beaivisible/discovery-engine/internal/intelligence"
	"github.com/beaivisible/discovery-engine/internal/oracle"
	"github.com/beaivisible/discovery-engine/internal/pkg/distlock"
	"github.com/beaivisible/discovery-engine/internal/reports"
	"github.com/beaivisible/discovery-engine/internal/repository/postgres"
	"github.com/beaivisible/discovery-engine/internal/service/audit"
	"github.com/beaivisible/discovery-engine/internal/service/distribution"
	"github.com/beaivisible/discovery-engine/internal/sink"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Discovery Engine server starting (cmd/server/main.go)")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	// PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("PostgreSQL connected")

	// Redis backs the run locks and the sync idempotency ledger.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		log.Fatalf("Redis ping failed (addr %s): %v", cfg.Redis.Addr, err)
	}
	log.Printf("Redis connected at %s", cfg.Redis.Addr)

	// Upstream clients
	oracleClient := oracle.NewClient(cfg.Oracle)
	sinkClient := sink.NewClient(cfg.Sink)

	// Repositories
	auditRepo := postgres.NewAuditRepo(db)
	leadRepo := postgres.NewLeadRepo(db)
	reportRepo := postgres.NewReportRepo(db)

	// Report generation with optional S3 archiving
	var archiver reports.Archiver
	if cfg.Reports.S3Enabled && cfg.Reports.S3Bucket != "" {
		s3Archive, err := reports.NewS3Archive(context.Background(), cfg.Reports.S3Bucket, cfg.Reports.S3Region)
		if err != nil {
			log.Fatalf("Failed to initialize S3 report archive: %v", err)
		}
		archiver = s3Archive
		log.Printf("Report archiving enabled: s3://%s", cfg.Reports.S3Bucket)
	}
	reportGen := reports.NewGenerator(reportRepo, archiver)

	// Audit orchestration
	aggregator := intelligence.NewAggregator(oracleClient)
	lockFactory := func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, ttl)
	}
	auditSvc := audit.NewService(auditRepo, auditRepo, oracleClient, aggregator, reportGen, lockFactory,
		audit.Options{
			PollInterval: cfg.Audit.PollInterval(),
			MaxAttempts:  cfg.Audit.PollMaxAttempts,
			LockTTL:      cfg.Audit.RunLockTTL(),
		})

	// Lead distribution
	matcher := icp.NewMatcher(cfg.ICP.DefaultThreshold)
	ledger := distribution.NewRedisLedger(redisClient)
	distSvc := distribution.NewService(leadRepo, matcher, sinkClient, ledger)

	// HTTP API
	handlers := api.NewHandlers(auditSvc, distSvc, db)
	handlers.SetReportGenerator(reportGen)
	router := api.SetupRoutes(handlers)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	redisClient.Close()
	db.Close()

	log.Println("Server stopped")
}
