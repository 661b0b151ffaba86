package profiles

import (
	"strings"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/utils"
)

// ApplyEnvOverrides lets deployments resize individual pools without
// defining a whole custom profile: WORKER_COUNT_OBJECT_DETECTION=4,
// TASK_TIMEOUT_TRANSCRIPTION=3600, and so on.
func ApplyEnvOverrides(p *Profile, log *logger.Logger) {
	for taskType, cfg := range p.WorkerConfigs {
		suffix := strings.ToUpper(string(taskType))

		if count := utils.GetEnvAsInt("WORKER_COUNT_"+suffix, cfg.WorkerCount, log); count > 0 && count != cfg.WorkerCount {
			log.Info("Worker count overridden", "task_type", string(taskType), "worker_count", count)
			cfg.WorkerCount = count
		}
		if timeout := utils.GetEnvAsInt("TASK_TIMEOUT_"+suffix, cfg.TaskTimeoutSeconds, log); timeout > 0 && timeout != cfg.TaskTimeoutSeconds {
			log.Info("Task timeout overridden", "task_type", string(taskType), "task_timeout_seconds", timeout)
			cfg.TaskTimeoutSeconds = timeout
		}
		p.WorkerConfigs[taskType] = cfg
	}
}
