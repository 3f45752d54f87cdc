package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"row-analyzer/internal/analysis"
	"row-analyzer/internal/batches"
	"row-analyzer/internal/classifier"
	"row-analyzer/internal/classifier/logicapp"
	"row-analyzer/internal/queue"
	"row-analyzer/internal/shared/config"
	"row-analyzer/internal/shared/server"
	"row-analyzer/internal/shared/storage/db"
	"row-analyzer/internal/shared/storage/object"
	localstore "row-analyzer/internal/shared/storage/object/local"
	s3store "row-analyzer/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API and worker binaries.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	Queue        queue.Client
	Classifier   classifier.Client
	Orchestrator *analysis.Orchestrator
	BatchesRepo  batches.Repo
	Batches      *batches.Service
	BatchHandler *batches.Handler
}

// Options tune Build for a particular binary.
type Options struct {
	// Worker sizes the database pool for the job worker instead of the API.
	Worker bool
	// WorkerConcurrency is the number of batches the worker runs at once.
	WorkerConcurrency int
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		Queue:        queueClient,
		Classifier:   client,
		Orchestrator: analysis.New(cfg.AnalysisConfig(), client),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:       app.Config,
		BatchHandler: app.BatchHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if opts.Worker {
		poolOpts := db.PoolFor(db.RoleWorker, opts.WorkerConcurrency).WithEnv()
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, poolOpts)
	} else {
		poolOpts := db.PoolFor(db.RoleAPI, 0).WithEnv()
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, poolOpts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
}

// buildClassifier returns nil when no endpoint is configured; the
// orchestrator then resolves every row with a not-configured error.
func buildClassifier(cfg config.Config) (classifier.Client, error) {
	if strings.TrimSpace(cfg.ClassifierURL) == "" {
		return nil, nil
	}
	client, err := logicapp.NewClient(cfg.ClassifierURL,
		logicapp.WithMessageField(cfg.ClassifierMessageField),
		logicapp.WithTimeout(cfg.AnalysisAttemptTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("classifier client: %w", err)
	}
	return client, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var repo batches.Repo
	if app.DB != nil {
		repo = &batches.PGRepo{DB: app.DB}
	} else {
		repo = batches.NewMemoryRepo()
	}

	svc := &batches.Service{
		Repo:         repo,
		Store:        app.Store,
		Queue:        app.Queue,
		Orchestrator: app.Orchestrator,
		MaxRows:      app.Config.AnalysisMaxRows,
	}

	app.BatchesRepo = repo
	app.Batches = svc
	app.BatchHandler = batches.NewHandler(svc)

	if app.BatchHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
