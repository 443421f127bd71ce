package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVER_K", "")
	t.Setenv("TOP_N", "")
	t.Setenv("RERANK_HEAD", "")
	t.Setenv("RERANK_BACKEND", "")
	t.Setenv("TOKEN_BUDGET", "")
	t.Setenv("FUSION_STRATEGY", "")

	cfg := Load()
	if cfg.RetrieverK != 30 {
		t.Fatalf("expected default retriever k 30, got %d", cfg.RetrieverK)
	}
	if cfg.TopN != 5 {
		t.Fatalf("expected default top n 5, got %d", cfg.TopN)
	}
	if cfg.RerankHead != 20 {
		t.Fatalf("expected default rerank head 20, got %d", cfg.RerankHead)
	}
	if cfg.TokenBudget != 3000 {
		t.Fatalf("expected default token budget 3000, got %d", cfg.TokenBudget)
	}
	if cfg.FusionStrategy != "weighted" {
		t.Fatalf("expected default fusion strategy weighted, got %q", cfg.FusionStrategy)
	}
	if cfg.FusionTechLexWeight != 0.6 || cfg.FusionTechVecWeight != 0.4 {
		t.Fatalf("unexpected technical fusion weights %v/%v", cfg.FusionTechLexWeight, cfg.FusionTechVecWeight)
	}
	if cfg.FusionConcLexWeight != 0.3 || cfg.FusionConcVecWeight != 0.7 {
		t.Fatalf("unexpected conceptual fusion weights %v/%v", cfg.FusionConcLexWeight, cfg.FusionConcVecWeight)
	}
	if cfg.RerankBackend != "llm" {
		t.Fatalf("expected default rerank backend llm, got %q", cfg.RerankBackend)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVER_K", "40")
	t.Setenv("FUSION_STRATEGY", "rrf")
	t.Setenv("RERANK_BACKEND", "overlap")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CLASSIFIER_ENABLED", "false")

	cfg := Load()
	if cfg.RetrieverK != 40 {
		t.Fatalf("expected retriever k 40, got %d", cfg.RetrieverK)
	}
	if cfg.FusionStrategy != "rrf" {
		t.Fatalf("expected fusion strategy rrf, got %q", cfg.FusionStrategy)
	}
	if cfg.RerankBackend != "overlap" {
		t.Fatalf("expected rerank backend overlap, got %q", cfg.RerankBackend)
	}
	if cfg.CacheTTLSeconds != 60 {
		t.Fatalf("expected cache ttl 60, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %f", cfg.RateLimitRPS)
	}
	if cfg.ClassifierEnabled {
		t.Fatalf("expected classifier disabled")
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("RETRIEVER_K", "not-a-number")
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("CLASSIFIER_ENABLED", "sometimes")

	cfg := Load()
	if cfg.RetrieverK != 30 {
		t.Fatalf("expected fallback retriever k 30, got %d", cfg.RetrieverK)
	}
	if cfg.RateLimitRPS != 10 {
		t.Fatalf("expected fallback rate limit 10, got %f", cfg.RateLimitRPS)
	}
	if !cfg.ClassifierEnabled {
		t.Fatalf("expected fallback classifier enabled")
	}
}
