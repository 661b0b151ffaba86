package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eioku/eioku-backend/internal/inference"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/mljobs"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	queue, err := mljobs.NewQueue(log)
	if err != nil {
		log.Fatal("Failed to connect to job queue", "error", err)
	}
	defer queue.Close()

	// The engine is the opaque model runtime; the deterministic mock
	// serves installs without models.
	var engine inference.Engine
	switch utils.GetEnv("INFERENCE_ENGINE", "mock", log) {
	case "mock":
		engine = producer.NewMock(utils.GetEnv("MODEL_PROFILE", "balanced", log))
	default:
		log.Fatal("Unknown INFERENCE_ENGINE", "engine", os.Getenv("INFERENCE_ENGINE"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := inference.NewWorker(log, queue, engine)
	log.Info("Inference worker starting")
	worker.Run(ctx)
}
