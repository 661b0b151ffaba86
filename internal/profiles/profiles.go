package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/eioku/eioku-backend/internal/tasks"
)

const (
	ResourceCPU = "cpu"
	ResourceGPU = "gpu"
	ResourceIO  = "io"
)

// DefaultTaskTimeoutSeconds is the hard per-task deadline unless the
// worker config overrides it.
const DefaultTaskTimeoutSeconds = 1800

// WorkerConfig sizes one per-type worker pool.
type WorkerConfig struct {
	TaskType           tasks.TaskType `yaml:"task_type"`
	WorkerCount        int            `yaml:"worker_count"`
	ResourceType       string         `yaml:"resource_type"`
	Priority           int            `yaml:"priority"`
	TaskTimeoutSeconds int            `yaml:"task_timeout_seconds"`
}

// TaskSettings tune the producers themselves.
type TaskSettings struct {
	MaxConcurrentVideos         int     `yaml:"max_concurrent_videos"`
	FrameSamplingInterval       int     `yaml:"frame_sampling_interval"`
	FaceSamplingIntervalSeconds float64 `yaml:"face_sampling_interval_seconds"`
	ConfidenceThreshold         float64 `yaml:"confidence_threshold"`
	ModelProfile                string  `yaml:"model_profile"`
	UseGPU                      bool    `yaml:"use_gpu"`
}

// Profile is a named preset of worker configs plus task settings.
type Profile struct {
	Name          string                          `yaml:"name"`
	Description   string                          `yaml:"description"`
	WorkerConfigs map[tasks.TaskType]WorkerConfig `yaml:"worker_configs"`
	TaskSettings  TaskSettings                    `yaml:"task_settings"`
}

// ProducerConfig builds the recognized config options handed to an ML
// producer for one task.
func (p *Profile) ProducerConfig() map[string]any {
	return map[string]any{
		"frame_interval":       p.TaskSettings.FrameSamplingInterval,
		"confidence_threshold": p.TaskSettings.ConfidenceThreshold,
		"model_profile":        p.TaskSettings.ModelProfile,
		"use_gpu":              p.TaskSettings.UseGPU,
	}
}

// Manager holds the known profiles; the four canonical presets are always
// loaded and custom ones can be added or read from YAML.
type Manager struct {
	profiles map[string]*Profile
}

func NewManager() *Manager {
	m := &Manager{profiles: map[string]*Profile{}}
	for _, p := range defaultProfiles() {
		m.profiles[p.Name] = p
	}
	return m
}

func (m *Manager) Get(name string) (*Profile, error) {
	p, ok := m.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown processing profile %q", name)
	}
	return p, nil
}

func (m *Manager) Add(p *Profile) {
	m.profiles[p.Name] = p
}

func (m *Manager) List() map[string]string {
	out := make(map[string]string, len(m.profiles))
	for name, p := range m.profiles {
		out[name] = p.Description
	}
	return out
}

// Names returns the known profile names, sorted.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes a profile to disk as YAML.
func (m *Manager) Save(name string, dir string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".yaml"), raw, 0o644)
}

// Load reads a YAML profile file and registers it.
func (m *Manager) Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, fmt.Errorf("profile file %s has no name", path)
	}
	m.Add(&p)
	return &p, nil
}

func workerCfg(t tasks.TaskType, count int, resource string, priority int) WorkerConfig {
	return WorkerConfig{
		TaskType:           t,
		WorkerCount:        count,
		ResourceType:       resource,
		Priority:           priority,
		TaskTimeoutSeconds: DefaultTaskTimeoutSeconds,
	}
}

func defaultProfiles() []*Profile {
	balanced := &Profile{
		Name:        "balanced",
		Description: "Even resource distribution, optimized for general use",
		WorkerConfigs: map[tasks.TaskType]WorkerConfig{
			tasks.TypeHash:                workerCfg(tasks.TypeHash, 4, ResourceCPU, 1),
			tasks.TypeTranscription:       workerCfg(tasks.TypeTranscription, 2, ResourceCPU, 2),
			tasks.TypeSceneDetection:      workerCfg(tasks.TypeSceneDetection, 2, ResourceCPU, 3),
			tasks.TypeObjectDetection:     workerCfg(tasks.TypeObjectDetection, 2, ResourceGPU, 3),
			tasks.TypeFaceDetection:       workerCfg(tasks.TypeFaceDetection, 2, ResourceGPU, 3),
			tasks.TypeOCR:                 workerCfg(tasks.TypeOCR, 2, ResourceGPU, 3),
			tasks.TypePlaceDetection:      workerCfg(tasks.TypePlaceDetection, 2, ResourceGPU, 3),
			tasks.TypeMetadataExtraction:  workerCfg(tasks.TypeMetadataExtraction, 2, ResourceIO, 3),
			tasks.TypeTopicExtraction:     workerCfg(tasks.TypeTopicExtraction, 1, ResourceCPU, 4),
			tasks.TypeEmbeddingGeneration: workerCfg(tasks.TypeEmbeddingGeneration, 2, ResourceCPU, 2),
			tasks.TypeThumbnailGeneration: workerCfg(tasks.TypeThumbnailGeneration, 1, ResourceCPU, 4),
			tasks.TypeThumbnailExtraction: workerCfg(tasks.TypeThumbnailExtraction, 1, ResourceIO, 4),
		},
		TaskSettings: TaskSettings{
			MaxConcurrentVideos:         5,
			FrameSamplingInterval:       30,
			FaceSamplingIntervalSeconds: 5.0,
			ConfidenceThreshold:         0.5,
			ModelProfile:                "balanced",
			UseGPU:                      true,
		},
	}

	searchFirst := &Profile{
		Name:        "search_first",
		Description: "Prioritize getting videos searchable quickly",
		WorkerConfigs: map[tasks.TaskType]WorkerConfig{
			tasks.TypeHash:                workerCfg(tasks.TypeHash, 6, ResourceCPU, 1),
			tasks.TypeTranscription:       workerCfg(tasks.TypeTranscription, 4, ResourceCPU, 1),
			tasks.TypeSceneDetection:      workerCfg(tasks.TypeSceneDetection, 1, ResourceCPU, 4),
			tasks.TypeObjectDetection:     workerCfg(tasks.TypeObjectDetection, 1, ResourceGPU, 4),
			tasks.TypeFaceDetection:       workerCfg(tasks.TypeFaceDetection, 1, ResourceGPU, 4),
			tasks.TypeOCR:                 workerCfg(tasks.TypeOCR, 2, ResourceGPU, 2),
			tasks.TypePlaceDetection:      workerCfg(tasks.TypePlaceDetection, 1, ResourceGPU, 4),
			tasks.TypeMetadataExtraction:  workerCfg(tasks.TypeMetadataExtraction, 2, ResourceIO, 2),
			tasks.TypeTopicExtraction:     workerCfg(tasks.TypeTopicExtraction, 1, ResourceCPU, 3),
			tasks.TypeEmbeddingGeneration: workerCfg(tasks.TypeEmbeddingGeneration, 2, ResourceCPU, 1),
			tasks.TypeThumbnailGeneration: workerCfg(tasks.TypeThumbnailGeneration, 1, ResourceCPU, 4),
			tasks.TypeThumbnailExtraction: workerCfg(tasks.TypeThumbnailExtraction, 1, ResourceIO, 4),
		},
		TaskSettings: TaskSettings{
			MaxConcurrentVideos:         10,
			FrameSamplingInterval:       60,
			FaceSamplingIntervalSeconds: 10.0,
			ConfidenceThreshold:         0.5,
			ModelProfile:                "fast",
			UseGPU:                      true,
		},
	}

	visualFirst := &Profile{
		Name:        "visual_first",
		Description: "Prioritize object and face detection for visual navigation",
		WorkerConfigs: map[tasks.TaskType]WorkerConfig{
			tasks.TypeHash:                workerCfg(tasks.TypeHash, 3, ResourceCPU, 1),
			tasks.TypeTranscription:       workerCfg(tasks.TypeTranscription, 1, ResourceCPU, 3),
			tasks.TypeSceneDetection:      workerCfg(tasks.TypeSceneDetection, 2, ResourceCPU, 2),
			tasks.TypeObjectDetection:     workerCfg(tasks.TypeObjectDetection, 3, ResourceGPU, 1),
			tasks.TypeFaceDetection:       workerCfg(tasks.TypeFaceDetection, 3, ResourceGPU, 1),
			tasks.TypeOCR:                 workerCfg(tasks.TypeOCR, 2, ResourceGPU, 2),
			tasks.TypePlaceDetection:      workerCfg(tasks.TypePlaceDetection, 2, ResourceGPU, 2),
			tasks.TypeMetadataExtraction:  workerCfg(tasks.TypeMetadataExtraction, 1, ResourceIO, 3),
			tasks.TypeTopicExtraction:     workerCfg(tasks.TypeTopicExtraction, 1, ResourceCPU, 4),
			tasks.TypeEmbeddingGeneration: workerCfg(tasks.TypeEmbeddingGeneration, 1, ResourceCPU, 3),
			tasks.TypeThumbnailGeneration: workerCfg(tasks.TypeThumbnailGeneration, 2, ResourceCPU, 2),
			tasks.TypeThumbnailExtraction: workerCfg(tasks.TypeThumbnailExtraction, 1, ResourceIO, 3),
		},
		TaskSettings: TaskSettings{
			MaxConcurrentVideos:         3,
			FrameSamplingInterval:       15,
			FaceSamplingIntervalSeconds: 2.0,
			ConfidenceThreshold:         0.4,
			ModelProfile:                "high_quality",
			UseGPU:                      true,
		},
	}

	lowResource := &Profile{
		Name:        "low_resource",
		Description: "Minimal resource usage for background processing",
		WorkerConfigs: map[tasks.TaskType]WorkerConfig{
			tasks.TypeHash:                workerCfg(tasks.TypeHash, 2, ResourceCPU, 1),
			tasks.TypeTranscription:       workerCfg(tasks.TypeTranscription, 1, ResourceCPU, 2),
			tasks.TypeSceneDetection:      workerCfg(tasks.TypeSceneDetection, 1, ResourceCPU, 3),
			tasks.TypeObjectDetection:     workerCfg(tasks.TypeObjectDetection, 1, ResourceGPU, 3),
			tasks.TypeFaceDetection:       workerCfg(tasks.TypeFaceDetection, 1, ResourceGPU, 3),
			tasks.TypeOCR:                 workerCfg(tasks.TypeOCR, 1, ResourceGPU, 4),
			tasks.TypePlaceDetection:      workerCfg(tasks.TypePlaceDetection, 1, ResourceGPU, 4),
			tasks.TypeMetadataExtraction:  workerCfg(tasks.TypeMetadataExtraction, 1, ResourceIO, 3),
			tasks.TypeTopicExtraction:     workerCfg(tasks.TypeTopicExtraction, 1, ResourceCPU, 4),
			tasks.TypeEmbeddingGeneration: workerCfg(tasks.TypeEmbeddingGeneration, 1, ResourceCPU, 2),
			tasks.TypeThumbnailGeneration: workerCfg(tasks.TypeThumbnailGeneration, 1, ResourceCPU, 4),
			tasks.TypeThumbnailExtraction: workerCfg(tasks.TypeThumbnailExtraction, 1, ResourceIO, 4),
		},
		TaskSettings: TaskSettings{
			MaxConcurrentVideos:         1,
			FrameSamplingInterval:       120,
			FaceSamplingIntervalSeconds: 30.0,
			ConfidenceThreshold:         0.6,
			ModelProfile:                "fast",
			UseGPU:                      false,
		},
	}

	return []*Profile{balanced, searchFirst, visualFirst, lowResource}
}
