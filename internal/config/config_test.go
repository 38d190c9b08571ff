package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("CHAT_CONTEXT_TURNS", "")
	t.Setenv("CHAT_TEMPERATURE", "")
	t.Setenv("ADMISSION_WINDOW", "")
	t.Setenv("API_TRUSTED_PROXIES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ElasticsearchIndex != "drugs_db" {
		t.Fatalf("expected default index drugs_db, got %q", cfg.ElasticsearchIndex)
	}
	if cfg.ChatContextTurns != 10 {
		t.Fatalf("expected 10 context turns, got %d", cfg.ChatContextTurns)
	}
	if cfg.ChatTemperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", cfg.ChatTemperature)
	}
	if cfg.AdmissionWindow != time.Second || cfg.AdmissionPoints != 100 {
		t.Fatalf("unexpected admission defaults %d per %s", cfg.AdmissionPoints, cfg.AdmissionWindow)
	}
	if len(cfg.APITrustedProxies) != 0 {
		t.Fatalf("forwarded headers must not be trusted by default, got %q", cfg.APITrustedProxies)
	}
	if cfg.QdrantCollection != "drug_data" || cfg.QdrantTopK != 10 {
		t.Fatalf("unexpected qdrant defaults %q/%d", cfg.QdrantCollection, cfg.QdrantTopK)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHAT_CONTEXT_TURNS", "6")
	t.Setenv("QDRANT_SCORE_THRESHOLD", "0.35")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("API_BACKPRESSURE_WAIT", "1s")
	t.Setenv("ADMISSION_BACKEND", "Redis")
	t.Setenv("API_TRUSTED_PROXIES", "10.0.0.0/8, ,192.0.2.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChatContextTurns != 6 {
		t.Fatalf("expected 6 context turns, got %d", cfg.ChatContextTurns)
	}
	if cfg.QdrantScoreThreshold != 0.35 {
		t.Fatalf("expected score threshold 0.35, got %v", cfg.QdrantScoreThreshold)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.APIBackpressureWait != time.Second {
		t.Fatalf("expected 1s wait, got %s", cfg.APIBackpressureWait)
	}
	if cfg.AdmissionBackend != "redis" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.AdmissionBackend)
	}
	if len(cfg.APITrustedProxies) != 2 || cfg.APITrustedProxies[0] != "10.0.0.0/8" || cfg.APITrustedProxies[1] != "192.0.2.1" {
		t.Fatalf("unexpected trusted proxies %q", cfg.APITrustedProxies)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SEARCH_CANDIDATE_LIMIT", "lots")
	t.Setenv("COMPLETION_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SearchCandidateLimit != 200 {
		t.Fatalf("expected fallback 200, got %d", cfg.SearchCandidateLimit)
	}
	if cfg.CompletionTimeout != 60*time.Second {
		t.Fatalf("expected fallback 60s, got %s", cfg.CompletionTimeout)
	}
}

func TestLoadFileOverlayBelowEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "ELASTICSEARCH_INDEX: drugs_v2\nchat_decide_model: local-model\nQDRANT_TOP_K: 5\nRESILIENCE_BREAKER_ENABLED: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("CHAT_DECIDE_MODEL", "")
	t.Setenv("QDRANT_TOP_K", "8")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ElasticsearchIndex != "drugs_v2" {
		t.Fatalf("expected file value drugs_v2, got %q", cfg.ElasticsearchIndex)
	}
	if cfg.ChatDecideModel != "local-model" {
		t.Fatalf("expected file keys to be case-insensitive, got %q", cfg.ChatDecideModel)
	}
	if cfg.QdrantTopK != 8 {
		t.Fatalf("expected env to win over file, got %d", cfg.QdrantTopK)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected yaml bool to be honoured")
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("key: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
