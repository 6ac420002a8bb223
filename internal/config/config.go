// Package config loads runtime configuration for the three memory-layer
// services from the environment, following the env-first pattern the
// upstream agent platform used for its own service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default listen ports, per the service table in the specification.
const (
	DefaultIngestionPort = 21953
	DefaultIndexingPort  = 21954
	DefaultComposerPort  = 21955
)

// ExtractionStrategy selects how the extraction worker augments heuristic
// candidates with an LLM pass.
type ExtractionStrategy string

const (
	StrategyHeuristicOnly   ExtractionStrategy = "heuristic-only"
	StrategyLLMWithFallback ExtractionStrategy = "llm-with-fallback"
	StrategyHybrid          ExtractionStrategy = "hybrid"
)

// LLMProvider identifies the optional LLM backend used for extraction
// augmentation.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
)

// Config is the full set of environment-derived settings. Each service
// binary reads only the fields relevant to it.
type Config struct {
	DBPath string

	IngestionPort int
	IndexingPort  int
	ComposerPort  int

	LogLevel string
	LogDir   string

	UseLLMExtraction bool
	ExtractionStrategy ExtractionStrategy
	LLMProvider      LLMProvider

	OllamaURL   string
	OllamaModel string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ExtractionWorkers  int
	ExtractionQueueCap int
}

// Load reads configuration from the environment (and a local .env file, if
// present). Unset values fall back to the defaults named in the
// specification.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:             firstNonEmpty(os.Getenv("DB_PATH"), defaultDBPath()),
		IngestionPort:      intFromEnv("INGESTION_PORT", DefaultIngestionPort),
		IndexingPort:       intFromEnv("INDEXING_PORT", DefaultIndexingPort),
		ComposerPort:       intFromEnv("COMPOSER_PORT", DefaultComposerPort),
		LogLevel:           firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		UseLLMExtraction:   boolFromEnv("USE_LLM_EXTRACTION", false),
		LLMProvider:        LLMProvider(firstNonEmpty(os.Getenv("LLM_PROVIDER"), string(ProviderOllama))),
		OllamaURL:          firstNonEmpty(os.Getenv("OLLAMA_URL"), "http://localhost:11434"),
		OllamaModel:        firstNonEmpty(os.Getenv("OLLAMA_MODEL"), "llama3.2:3b"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:        firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
		ExtractionWorkers:  intFromEnv("EXTRACTION_WORKERS", 4),
		ExtractionQueueCap: intFromEnv("EXTRACTION_QUEUE_CAPACITY", 256),
	}
	cfg.LogDir = filepath.Dir(cfg.DBPath)

	strategyDefault := StrategyHeuristicOnly
	if cfg.UseLLMExtraction {
		strategyDefault = StrategyLLMWithFallback
	}
	cfg.ExtractionStrategy = ExtractionStrategy(firstNonEmpty(os.Getenv("EXTRACTION_STRATEGY"), string(strategyDefault)))

	switch cfg.ExtractionStrategy {
	case StrategyHeuristicOnly, StrategyLLMWithFallback, StrategyHybrid:
	default:
		return Config{}, fmt.Errorf("config: unknown EXTRACTION_STRATEGY %q", cfg.ExtractionStrategy)
	}

	return cfg, nil
}

// defaultDBPath mirrors the platform-config-dir convention: an
// application-named directory under the user's config home.
func defaultDBPath() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "MemoryLayer", "memory.db")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
