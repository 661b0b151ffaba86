package app

import (
	"time"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/utils"
)

type Config struct {
	ProcessingProfile    string
	GPUMode              string
	GPUConcurrency       int
	ModelCacheDir        string
	UseJobQueue          bool
	SweepInterval        time.Duration
	ReconcileInterval    time.Duration
	LongRunningThreshold time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		ProcessingProfile:    utils.GetEnv("PROCESSING_PROFILE", "balanced", log),
		GPUMode:              utils.GetEnv("GPU_MODE", "auto", log),
		GPUConcurrency:       utils.GetEnvAsInt("GPU_CONCURRENCY", 2, log),
		ModelCacheDir:        utils.GetEnv("MODEL_CACHE_DIR", "/var/cache/eioku/models", log),
		UseJobQueue:          utils.GetEnvAsBool("USE_JOB_QUEUE", true, log),
		SweepInterval:        time.Duration(utils.GetEnvAsInt("SWEEP_INTERVAL_SECONDS", 60, log)) * time.Second,
		ReconcileInterval:    time.Duration(utils.GetEnvAsInt("RECONCILE_INTERVAL_SECONDS", 300, log)) * time.Second,
		LongRunningThreshold: time.Duration(utils.GetEnvAsInt("LONG_RUNNING_THRESHOLD_SECONDS", 3600, log)) * time.Second,
	}
}
