package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/dlq"
	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/internal/state"
	"github.com/simflowlab/simflow/internal/storage"
	"github.com/simflowlab/simflow/internal/workflow"
	"github.com/simflowlab/simflow/pkg/api/handlers"
	"github.com/simflowlab/simflow/pkg/api/middleware"
)

const version = "0.3.0"

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	port := flag.String("port", getEnv("PORT", "8080"), "HTTP listen port")
	natsURL := flag.String("nats", getEnv("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	enableDB := flag.Bool("db", false, "Enable the Postgres audit store")
	redisAddr := flag.String("redis", getEnv("REDIS_ADDR", ""), "Redis address for task event pub/sub (empty disables)")
	enableAuth := flag.Bool("auth", false, "Require JWT authentication on the API")
	rps := flag.Float64("rate-limit", 10, "Per-client requests per second")
	burst := flag.Int("rate-burst", 20, "Per-client request burst")
	flag.Parse()

	log.Printf("Starting Simflow API Server v%s", version)
	log.Printf("NATS URL: %s", *natsURL)

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var db *storage.DB
	var runs storage.TaskRunRepository
	var decisions storage.DecisionRepository
	var err error
	if *enableDB {
		dbCfg := storage.DefaultConfig()
		dbCfg.Host = getEnv("DB_HOST", dbCfg.Host)
		dbCfg.Port = getEnv("DB_PORT", dbCfg.Port)
		dbCfg.User = getEnv("DB_USER", dbCfg.User)
		dbCfg.Password = getEnv("DB_PASSWORD", dbCfg.Password)
		dbCfg.DBName = getEnv("DB_NAME", dbCfg.DBName)

		db, err = storage.NewDB(dbCfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := storage.RunMigrations(dbCfg, getEnv("MIGRATIONS_PATH", "./migrations")); err != nil {
			log.Printf("Warning: failed to run migrations: %v", err)
		}

		runs = storage.NewTaskRunRepository(db.DB)
		decisions = storage.NewDecisionRepository(db.DB)
		log.Println("Database connection established")
	}

	// Task transition events fan out to whichever sinks are configured:
	// Redis pub/sub for live subscribers, the database for history.
	var publishers []state.EventPublisher
	if *redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     *redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cancel()

		publishers = append(publishers, state.NewRedisPublisher(redisClient))
		log.Println("Task event publishing to Redis enabled")
	}
	if db != nil {
		publishers = append(publishers, state.NewHistoryPublisher(db.DB))
	}

	queueConfig := queue.DefaultNATSConfig()
	queueConfig.URL = *natsURL
	if len(publishers) > 0 {
		queueConfig.States = state.NewManager(state.NewMultiPublisher(publishers...))
	}

	natsQueue, err := queue.NewNATSQueue(queueConfig)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsQueue.Close()

	letters := dlq.NewMemoryQueue()

	clientConfig := client.DefaultConfig()
	clientConfig.DeadLetters = letters
	taskClient := client.New(natsQueue, clientConfig)
	aggregator := workflow.NewAggregator(taskClient, clientConfig.PollInterval)

	routingConfig := routing.DefaultConfig()
	if decisions != nil {
		routingConfig.Logger = storage.NewPersistentDecisionLog(decisions, "api")
	}
	routeEngine, err := routing.NewEngine(routingConfig)
	if err != nil {
		log.Fatalf("Failed to create routing engine: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	rateLimiter := middleware.NewRateLimiter(*rps, *burst)
	defer rateLimiter.Stop()

	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler())
	router.Use(rateLimiter.RateLimit())

	handlers.NewHealthHandler(natsQueue, db).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	if *enableAuth {
		v1.Use(middleware.JWTAuth(middleware.DefaultJWTConfig()))
		log.Println("JWT authentication enabled")
	}

	handlers.NewTaskHandler(taskClient, runs).RegisterRoutes(v1)
	handlers.NewWorkflowHandler(aggregator).RegisterRoutes(v1)
	handlers.NewRoutingHandler(routeEngine, decisions).RegisterRoutes(v1)
	handlers.NewDeadLetterHandler(letters, taskClient).RegisterRoutes(v1)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", *port),
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}
