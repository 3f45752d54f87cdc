package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ANALYSIS_CONCURRENCY", "ANALYSIS_STAGGER_MS", "ANALYSIS_MAX_RETRIES", "ANALYSIS_CONFIDENCE_ADJUST", "API_KEYS", "OBJECT_STORE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.AnalysisConcurrency != 5 || cfg.AnalysisStagger != time.Second || cfg.AnalysisMaxRetries != 3 {
		t.Fatalf("unexpected analysis defaults %+v", cfg)
	}
	if cfg.AnalysisRetryBase != 10*time.Second || cfg.AnalysisAttemptTimeout != 600*time.Second {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
	if !cfg.AnalysisConfidenceAdjust {
		t.Fatalf("expected confidence adjust on by default")
	}
	if cfg.ObjectStoreType != "local" || len(cfg.APIKeys) != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_CONCURRENCY", "2")
	t.Setenv("ANALYSIS_STAGGER_MS", "250")
	t.Setenv("ANALYSIS_MAX_RETRIES", "0")
	t.Setenv("ANALYSIS_CONFIDENCE_ADJUST", "false")
	t.Setenv("ANALYSIS_RETRY_BASE_SECONDS", "bogus")
	t.Setenv("API_KEYS", "k1, k2 ,")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("ENV", "prod")

	cfg := Load()
	if cfg.AnalysisConcurrency != 2 || cfg.AnalysisStagger != 250*time.Millisecond || cfg.AnalysisMaxRetries != 0 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.AnalysisConfidenceAdjust {
		t.Fatalf("expected confidence adjust off")
	}
	if cfg.AnalysisRetryBase != 10*time.Second {
		t.Fatalf("invalid value should fall back, got %v", cfg.AnalysisRetryBase)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "k2" {
		t.Fatalf("unexpected api keys %v", cfg.APIKeys)
	}
	if cfg.ObjectStoreType != "s3" || cfg.Env != "production" {
		t.Fatalf("unexpected normalization %+v", cfg)
	}

	ac := cfg.AnalysisConfig()
	if ac.ConcurrencyLimit != 2 || ac.MaxRetries != 0 || ac.ConfidenceAdjust || ac.StaggerInterval != 250*time.Millisecond {
		t.Fatalf("unexpected analysis config %+v", ac)
	}
}

func TestLoadEnvFilesKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nRA_TEST_NEW=\"fresh\"\nexport RA_TEST_EXISTING=from-file\nnot a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("RA_TEST_EXISTING", "from-env")
	t.Setenv("RA_TEST_NEW", "")
	os.Unsetenv("RA_TEST_NEW")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("RA_TEST_NEW"); got != "fresh" {
		t.Fatalf("expected fresh, got %q", got)
	}
	if got := os.Getenv("RA_TEST_EXISTING"); got != "from-env" {
		t.Fatalf("expected env value to win, got %q", got)
	}
	os.Unsetenv("RA_TEST_NEW")
}
