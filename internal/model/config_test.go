package model

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if err := cfg.ValidateJury(); err != nil {
		t.Fatalf("expected default jury to validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold above one", func(c *Config) { c.Judge.QuoteThreshold = 1.5 }, "quote_threshold"},
		{"negative threshold", func(c *Config) { c.Judge.QuoteThreshold = -0.1 }, "quote_threshold"},
		{"negative context", func(c *Config) { c.Judge.ContextLines = -1 }, "context_lines"},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, "chunk_size"},
		{"overlap equals size", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize }, "chunk_overlap"},
		{"unknown embedder", func(c *Config) { c.Index.Embedder = "word2vec" }, "index.embedder"},
		{"unknown backend", func(c *Config) { c.Audit.Backend = "sqlite" }, "audit.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfig_ValidateJury(t *testing.T) {
	tests := []struct {
		name   string
		jurors []JurorConfig
		want   string
	}{
		{"empty", nil, "empty"},
		{"unnamed", []JurorConfig{{Provider: "local"}}, "needs a name"},
		{"duplicate", []JurorConfig{{Name: "a"}, {Name: "a"}}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Jury.Jurors = tt.jurors
			err := cfg.ValidateJury()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
