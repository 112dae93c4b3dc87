package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete application configuration.
// Tags serve both the YAML config file and viper's decoder.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus" mapstructure:"corpus"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	Jury      JuryConfig      `yaml:"jury" mapstructure:"jury"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Verbose   bool            `yaml:"verbose" mapstructure:"verbose"`
}

// CorpusConfig locates the canonical (baked) documents
type CorpusConfig struct {
	Root     string        `yaml:"root" mapstructure:"root"`
	Pattern  string        `yaml:"pattern" mapstructure:"pattern"`     // doublestar glob relative to Root
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"` // Parsed document cache
}

// IndexConfig controls chunking, embedding and ranking
type IndexConfig struct {
	ChunkSize          int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	Embedder           string  `yaml:"embedder" mapstructure:"embedder"` // tfidf, openai, none
	EmbeddingModel     string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	EmbeddingBaseURL   string  `yaml:"embedding_base_url" mapstructure:"embedding_base_url"`
	EmbeddingAPIKeyEnv string  `yaml:"embedding_api_key_env" mapstructure:"embedding_api_key_env"`
	EmbeddingCacheDir  string  `yaml:"embedding_cache_dir" mapstructure:"embedding_cache_dir"`
	HybridCandidates   int     `yaml:"hybrid_candidates" mapstructure:"hybrid_candidates"` // Multiplier on top_k for discovery
	BM25K1             float64 `yaml:"bm25_k1" mapstructure:"bm25_k1"`
	BM25B              float64 `yaml:"bm25_b" mapstructure:"bm25_b"`
}

// JudgeConfig holds phase 1 and phase 2 parameters
type JudgeConfig struct {
	ContextLines   int           `yaml:"context_lines" mapstructure:"context_lines"`
	QuoteThreshold float64       `yaml:"quote_threshold" mapstructure:"quote_threshold"`
	PhaseTimeout   time.Duration `yaml:"phase_timeout" mapstructure:"phase_timeout"` // Bounds the whole jury wait
}

// JuryConfig lists the panel of jurors
type JuryConfig struct {
	Jurors []JurorConfig `yaml:"jurors" mapstructure:"jurors"`
}

// JurorConfig configures one juror
type JurorConfig struct {
	Name              string        `yaml:"name" mapstructure:"name"`
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openai, local, anthropic, ollama
	Model             string        `yaml:"model" mapstructure:"model"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env,omitempty" mapstructure:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AuditConfig selects the append-only record store
type AuditConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Backend    string `yaml:"backend" mapstructure:"backend"` // jsonl, badger
	BadgerPath string `yaml:"badger_path" mapstructure:"badger_path"`
}

// BatchConfig controls report verification runs
type BatchConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	OutputDir     string        `yaml:"output_dir" mapstructure:"output_dir"`
	ContextWindow int           `yaml:"context_window" mapstructure:"context_window"` // Characters carried from before the previous citation
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TelemetryConfig controls the Prometheus endpoint
type TelemetryConfig struct {
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"` // Empty disables the endpoint
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:     "data/canonical",
			Pattern:  "**/*_baked.txt",
			CacheTTL: 30 * time.Minute,
		},
		Index: IndexConfig{
			ChunkSize:          50,
			ChunkOverlap:       10,
			Embedder:           "tfidf",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingAPIKeyEnv: "OPENAI_API_KEY",
			EmbeddingCacheDir:  "data/cache/embeddings",
			HybridCandidates:   4,
			BM25K1:             1.2,
			BM25B:              0.75,
		},
		Judge: JudgeConfig{
			ContextLines:   5,
			QuoteThreshold: 0.80,
			PhaseTimeout:   3 * time.Minute,
		},
		Jury: JuryConfig{
			Jurors: []JurorConfig{DefaultLocalJuror()},
		},
		Audit: AuditConfig{
			Dir:        "data/audit",
			Backend:    "jsonl",
			BadgerPath: "data/audit/badger",
		},
		Batch: BatchConfig{
			Workers:       4,
			OutputDir:     "data/verification",
			ContextWindow: 300,
			Timeout:       30 * time.Minute,
		},
	}
}

// DefaultLocalJuror is an OpenAI-compatible local server (LM Studio, llama.cpp)
func DefaultLocalJuror() JurorConfig {
	return JurorConfig{
		Name:              "local",
		Provider:          "local",
		Model:             "local-model",
		BaseURL:           "http://localhost:1234/v1",
		Timeout:           60 * time.Second,
		MaxRetries:        2,
		RequestsPerSecond: 2,
		Burst:             2,
	}
}

// Validate checks value ranges that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	var errs []error
	if c.Judge.QuoteThreshold < 0 || c.Judge.QuoteThreshold > 1 {
		errs = append(errs, fmt.Errorf("judge.quote_threshold must be 0-1, got %f", c.Judge.QuoteThreshold))
	}
	if c.Judge.ContextLines < 0 {
		errs = append(errs, fmt.Errorf("judge.context_lines must be >= 0, got %d", c.Judge.ContextLines))
	}
	if c.Index.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk_size must be > 0, got %d", c.Index.ChunkSize))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_size), got %d", c.Index.ChunkOverlap))
	}
	switch c.Index.Embedder {
	case "tfidf", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("index.embedder must be tfidf, openai or none, got %q", c.Index.Embedder))
	}
	switch c.Audit.Backend {
	case "jsonl", "badger":
	default:
		errs = append(errs, fmt.Errorf("audit.backend must be jsonl or badger, got %q", c.Audit.Backend))
	}
	return errors.Join(errs...)
}

// ValidateJury additionally requires a non-empty panel, for commands that verify
func (c *Config) ValidateJury() error {
	if len(c.Jury.Jurors) == 0 {
		return errors.New("jury.jurors is empty: at least one juror is required")
	}
	seen := make(map[string]bool)
	for _, j := range c.Jury.Jurors {
		if j.Name == "" {
			return errors.New("jury.jurors: every juror needs a name")
		}
		if seen[j.Name] {
			return fmt.Errorf("jury.jurors: duplicate juror name %q", j.Name)
		}
		seen[j.Name] = true
	}
	return nil
}
