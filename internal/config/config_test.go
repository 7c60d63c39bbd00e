package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
  vector_backend: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.VectorBackend != "memory" {
		t.Errorf("vector_backend = %q, want memory", cfg.Storage.VectorBackend)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_defaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"chunk max tokens", cfg.Chunking.MaxTokens, 500},
		{"chunk delimiter", cfg.Chunking.Delimiter, ". "},
		{"similarity floor", cfg.Retrieval.SimilarityFloor, 0.3},
		{"small cutoff", cfg.Retrieval.SmallCutoff, 3},
		{"medium cutoff", cfg.Retrieval.MediumCutoff, 6},
		{"top k", cfg.Retrieval.TopK, 5},
		{"max questions", cfg.Interview.MaxQuestions, 23},
		{"turn max tokens", cfg.LLM.Turn.MaxTokens, 1200},
		{"turn temperature", cfg.LLM.Turn.Temperature, 0.8},
		{"turn timeout", cfg.LLM.Turn.Timeout, 30 * time.Second},
		{"extraction temperature", cfg.LLM.Extraction.Temperature, 0.3},
		{"structured max tokens", cfg.LLM.Structured.MaxTokens, 3000},
		{"structured timeout", cfg.LLM.Structured.Timeout, 120 * time.Second},
		{"list retries", cfg.Storage.ListRetries, 3},
		{"assistant", cfg.Persona.AssistantName, "Jamie"},
		{"extraction mode", cfg.Extraction.Mode, "structured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	if len(cfg.Ingestion.AllowedExtensions) != 4 {
		t.Errorf("allowed extensions = %v", cfg.Ingestion.AllowedExtensions)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/interviewd.db"
  vector_path: "./data/vectors"
extraction:
  output_dir: "./out"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "interviewd.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "vectors"); cfg.Storage.VectorPath != want {
		t.Errorf("vector_path = %q, want %q", cfg.Storage.VectorPath, want)
	}
	if want := filepath.Join(dir, "out"); cfg.Extraction.OutputDir != want {
		t.Errorf("output_dir = %q, want %q", cfg.Extraction.OutputDir, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"floor above one", "retrieval:\n  similarity_floor: 1.5\n"},
		{"cutoffs inverted", "retrieval:\n  small_cutoff: 8\n  medium_cutoff: 6\n"},
		{"unknown backend", "storage:\n  vector_backend: faiss\n"},
		{"unknown mode", "extraction:\n  mode: magic\n"},
		{"unknown estimator", "chunking:\n  estimator: words\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("INTERVIEWD_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("INTERVIEWD_EMBEDDING_API_KEY", "")
	cfg := &Config{}
	ApplyEnv(cfg)
	if cfg.LLM.APIKey != "sk-fallback" {
		t.Errorf("LLM key = %q, want fallback", cfg.LLM.APIKey)
	}
	if cfg.Embedding.APIKey != "sk-fallback" {
		t.Errorf("embedding key should inherit LLM key, got %q", cfg.Embedding.APIKey)
	}

	t.Setenv("INTERVIEWD_LLM_API_KEY", "sk-primary")
	cfg = &Config{}
	ApplyEnv(cfg)
	if cfg.LLM.APIKey != "sk-primary" {
		t.Errorf("LLM key = %q, want primary", cfg.LLM.APIKey)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("INTERVIEWD_DATA_DIR", "")
	dir := t.TempDir()
	cfg := Default(dir)
	if cfg.Storage.DatabasePath != filepath.Join(dir, "interviewd.db") {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("INTERVIEWD_DATA_DIR", "")
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.Server.Port = 9123
	path := filepath.Join(dir, "nested", "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9123 {
		t.Errorf("port = %d, want 9123", loaded.Server.Port)
	}
}
