package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/scheduler"
	"github.com/simflowlab/simflow/internal/sweep"
	"github.com/simflowlab/simflow/internal/workflow"
)

const version = "0.2.0"

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	natsURL = flag.String("nats", getEnv("NATS_URL", "nats://localhost:4222"), "NATS server URL")

	redisHost     = flag.String("redis-host", getEnv("REDIS_HOST", ""), "Redis host (empty disables distributed locking)")
	redisPort     = flag.String("redis-port", getEnv("REDIS_PORT", "6379"), "Redis port")
	redisPassword = flag.String("redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	redisDB       = flag.Int("redis-db", 0, "Redis database")

	sweepDir         = flag.String("sweep-dir", getEnv("SWEEP_DIR", "./sweeps"), "Directory of sweep definition YAML files")
	dispatchInterval = flag.Duration("dispatch-interval", 10*time.Second, "Deferred run dispatch interval")
	maxConcurrent    = flag.Int("max-concurrent", 100, "Maximum concurrently running tasks")
	toolConcurrency  = flag.Int("tool-concurrency", 16, "Default per-tool concurrency limit")
	timezone         = flag.String("timezone", "UTC", "Default timezone for cron schedules")
)

func main() {
	flag.Parse()

	log.Printf("Starting Simflow Scheduler v%s", version)

	natsQueue, err := queue.NewNATSQueue(&queue.NATSConfig{URL: *natsURL})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsQueue.Close()
	log.Printf("NATS connection established: %s", *natsURL)

	var redisClient *redis.Client
	if *redisHost != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", *redisHost, *redisPort),
			Password: *redisPassword,
			DB:       *redisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cancel()
		log.Println("Redis connection established")
	}

	taskClient := client.New(natsQueue, client.DefaultConfig())
	aggregator := workflow.NewAggregator(taskClient, client.DefaultPollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	concurrencyMgr := scheduler.NewConcurrencyManager(ctx, &scheduler.ConcurrencyConfig{
		MaxGlobalConcurrency:   *maxConcurrent,
		DefaultToolConcurrency: *toolConcurrency,
		RedisClient:            redisClient,
		LockTTL:                30 * time.Second,
	})

	sched := scheduler.New(&scheduler.Config{
		DispatchInterval: *dispatchInterval,
		DefaultTimezone:  *timezone,
		LockPrefix:       "simflow:sweep-run:",
	}, aggregator, concurrencyMgr)

	registered, err := loadSweeps(sched, *sweepDir)
	if err != nil {
		log.Fatalf("Failed to load sweep definitions: %v", err)
	}
	log.Printf("Registered %d sweep definitions from %s", registered, *sweepDir)

	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Scheduler started")
	log.Printf("Dispatch interval: %v", *dispatchInterval)
	log.Printf("Max concurrent tasks: %d", *maxConcurrent)
	log.Printf("Timezone: %s", *timezone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	sched.Stop()
	log.Println("Scheduler stopped")
}

// loadSweeps parses every YAML file in dir and registers it
func loadSweeps(sched *scheduler.Scheduler, dir string) (int, error) {
	parser := sweep.NewParser()

	patterns := []string{"*.yaml", "*.yml"}
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, err
		}
		files = append(files, matches...)
	}

	registered := 0
	for _, file := range files {
		def, err := parser.ParseYAMLFile(file)
		if err != nil {
			return registered, fmt.Errorf("parsing %s: %w", file, err)
		}
		if err := sched.Register(def); err != nil {
			return registered, fmt.Errorf("registering %s: %w", file, err)
		}
		registered++
	}

	return registered, nil
}
