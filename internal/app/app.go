package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/db"
	"github.com/eioku/eioku-backend/internal/handlers"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/mljobs"
	"github.com/eioku/eioku-backend/internal/navigation"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/projection"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/schema"
	"github.com/eioku/eioku-backend/internal/server"
	"github.com/eioku/eioku-backend/internal/services"
	"github.com/eioku/eioku-backend/internal/workers"
)

type Repos struct {
	Videos     repos.VideoRepo
	Tasks      repos.TaskRepo
	Artifacts  repos.ArtifactRepo
	Runs       repos.RunRepo
	Selections repos.SelectionRepo
}

type Services struct {
	Videos       *services.VideoService
	Orchestrator *services.Orchestrator
	Navigation   *navigation.Engine
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Store    *db.Service
	Router   *gin.Engine
	Cfg      Config
	Profile  *profiles.Profile
	Registry *schema.Registry
	Repos    Repos
	Services Services

	queue      *mljobs.Queue
	manager    *workers.Manager
	reconciler *mljobs.Reconciler
	cancel     context.CancelFunc
}

func New() (*App, error) {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Config
	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	// Store
	store, err := db.NewFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("store automigrate: %w", err)
	}
	theDB := store.DB()

	// Schema registry: write-once, frozen before anything can insert.
	registry := schema.NewRegistry()
	if err := schema.RegisterAll(registry); err != nil {
		log.Sync()
		return nil, fmt.Errorf("register schemas: %w", err)
	}
	registry.Freeze()

	// Processing profile
	profileManager := profiles.NewManager()
	profile, err := profileManager.Get(cfg.ProcessingProfile)
	if err != nil {
		log.Sync()
		return nil, err
	}
	profiles.ApplyEnvOverrides(profile, log)

	// Projections
	projections := projection.NewDefaultRegistry(log, projection.NoopGeocoder{})

	// Repos
	reposet := Repos{
		Videos:     repos.NewVideoRepo(theDB, log),
		Tasks:      repos.NewTaskRepo(theDB, log),
		Artifacts:  repos.NewArtifactRepo(theDB, registry, projections, log),
		Runs:       repos.NewRunRepo(theDB, log),
		Selections: repos.NewSelectionRepo(theDB, log),
	}

	// Job queue (optional; queue-less deployments run the mock producer)
	var queue *mljobs.Queue
	if cfg.UseJobQueue {
		queue, err = mljobs.NewQueue(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init job queue: %w", err)
		}
	}

	// Services
	orchestrator := services.NewOrchestrator(theDB, log, reposet.Tasks, reposet.Videos, queue, profile)
	serviceset := Services{
		Videos:       services.NewVideoService(log, reposet.Videos),
		Orchestrator: orchestrator,
		Navigation:   navigation.NewEngine(theDB, store.IsPostgres(), log),
	}

	// Worker pools
	var mockProducer producer.Client
	if queue == nil {
		mockProducer = producer.NewMock(profile.TaskSettings.ModelProfile)
	}
	manager := workers.NewManager(log, profile, workers.ManagerDeps{
		DB:           theDB,
		TaskRepo:     reposet.Tasks,
		VideoRepo:    reposet.Videos,
		ArtifactRepo: reposet.Artifacts,
		RunRepo:      reposet.Runs,
		Orchestrator: orchestrator,
		Queue:        queue,
		Producer:     mockProducer,
		Renderer:     workers.NoopRenderer{},
	})

	// Reconciler
	var reconciler *mljobs.Reconciler
	if queue != nil {
		reconciler = mljobs.NewReconciler(log, queue, reposet.Tasks, reposet.Videos, profile, cfg.ReconcileInterval, cfg.LongRunningThreshold)
	}

	// Router
	router := server.NewRouter(server.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(),
		VideosHandler:    handlers.NewVideosHandler(serviceset.Videos, orchestrator),
		TasksHandler:     handlers.NewTasksHandler(reposet.Tasks, orchestrator),
		ArtifactsHandler: handlers.NewArtifactsHandler(reposet.Artifacts, reposet.Selections),
		JumpHandler:      handlers.NewJumpHandler(serviceset.Navigation),
	})

	return &App{
		Log:        log,
		DB:         theDB,
		Store:      store,
		Router:     router,
		Cfg:        cfg,
		Profile:    profile,
		Registry:   registry,
		Repos:      reposet,
		Services:   serviceset,
		queue:      queue,
		manager:    manager,
		reconciler: reconciler,
	}, nil
}

// Start launches the background components: worker pools, the
// orchestrator sweeper and the reconciler.
func (a *App) Start(runWorkers bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if runWorkers {
		a.manager.StartAll(ctx)
	}
	a.Services.Orchestrator.StartSweeper(ctx, a.Cfg.SweepInterval)
	if a.reconciler != nil {
		a.reconciler.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
		a.manager.WaitAll()
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	a.Log.Sync()
}
