package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"row-analyzer/internal/batches"
	"row-analyzer/internal/shared/config"
	localstore "row-analyzer/internal/shared/storage/object/local"
	"row-analyzer/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(io.Discard)
	code := m.Run()
	restore()
	os.Exit(code)
}

func TestBuildDevFallsBackToMemory(t *testing.T) {
	cfg := config.Config{
		Env:             "dev",
		LocalStoreDir:   t.TempDir(),
		AnalysisMaxRows: 10,
	}
	app, err := Build(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil || app.Queue != nil || app.Classifier != nil {
		t.Fatalf("expected no external dependencies, got %+v", app)
	}
	if _, ok := app.BatchesRepo.(*batches.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.BatchesRepo)
	}
	if _, ok := app.Store.(*localstore.Store); !ok {
		t.Fatalf("expected local store, got %T", app.Store)
	}
	if app.Batches.MaxRows != 10 {
		t.Fatalf("expected MaxRows from config, got %d", app.Batches.MaxRows)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := config.Config{Env: "production", LocalStoreDir: t.TempDir()}
	if _, err := Build(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildS3RequiresBucket(t *testing.T) {
	cfg := config.Config{Env: "dev", ObjectStoreType: "s3"}
	if _, err := Build(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error for s3 store without bucket")
	}
}

func TestBuildClassifierFromConfig(t *testing.T) {
	cfg := config.Config{ClassifierURL: "http://localhost:9/classify", ClassifierMessageField: "text"}
	client, err := buildClassifier(cfg)
	if err != nil {
		t.Fatalf("buildClassifier: %v", err)
	}
	if client == nil {
		t.Fatalf("expected a classifier client")
	}
}
