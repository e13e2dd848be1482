package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/simflowlab/simflow/internal/worker"
)

const version = "0.3.0"

func main() {
	natsURL := flag.String("nats", os.Getenv("NATS_URL"), "NATS server URL")
	workDir := flag.String("workdir", "", "Working directory for script execution")
	python := flag.String("python", "python3", "Python interpreter for python tasks")
	enableDocker := flag.Bool("docker", false, "Enable the Docker script executor")
	dockerImage := flag.String("docker-image", "python:3.11-slim", "Default Docker image")
	dockerVolumes := flag.String("docker-volumes", "", "Comma-separated host:container volume mounts")
	heartbeat := flag.Duration("heartbeat", 10*time.Second, "Worker heartbeat interval")
	flag.Parse()

	if *natsURL == "" {
		*natsURL = "nats://localhost:4222"
	}

	log.Printf("Starting Simflow Worker v%s", version)
	log.Printf("NATS URL: %s", *natsURL)
	log.Printf("Docker enabled: %v", *enableDocker)

	config := worker.DefaultConfig()
	config.NATSURL = *natsURL
	config.HeartbeatInterval = *heartbeat

	w, err := worker.New(config)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}

	w.RegisterExecutor(worker.NewBashExecutor(*workDir))
	w.RegisterExecutor(worker.NewPythonExecutor(*python, *workDir))

	if *enableDocker {
		var volumes []string
		if *dockerVolumes != "" {
			volumes = strings.Split(*dockerVolumes, ",")
		}
		w.RegisterExecutor(worker.NewDockerExecutor(*dockerImage, volumes))
		log.Println("Docker script executor registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Printf("Worker %s ready to process tasks", w.ID())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := w.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Worker stopped")
}
