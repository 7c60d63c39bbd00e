// Package config provides configuration loading and structs for the interviewd server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Interview  InterviewConfig  `yaml:"interview"`
	Persona    PersonaConfig    `yaml:"persona"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath   string        `yaml:"database_path"`
	VectorPath     string        `yaml:"vector_path"`
	VectorBackend  string        `yaml:"vector_backend"` // chromem or memory
	Collection     string        `yaml:"collection"`
	Compress       bool          `yaml:"compress"`
	RuleIndexPath  string        `yaml:"rule_index_path"`
	ListRetries    int           `yaml:"list_retries"`
	ListRetryDelay time.Duration `yaml:"list_retry_delay"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // openai, onnx or mock
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	BatchSize  int           `yaml:"batch_size"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"`
}

// LLMConfig holds the completion endpoint and per call-site parameters.
type LLMConfig struct {
	Provider   string     `yaml:"provider"` // openai or mock
	BaseURL    string     `yaml:"base_url"`
	APIKey     string     `yaml:"api_key"`
	RateLimit  float64    `yaml:"rate_limit"`
	Burst      int        `yaml:"burst"`
	Turn       CallConfig `yaml:"turn"`
	Extraction CallConfig `yaml:"extraction"`
	Structured CallConfig `yaml:"structured"`
}

// CallConfig are the completion parameters used by one call site.
type CallConfig struct {
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChunkingConfig controls the sentence chunker.
type ChunkingConfig struct {
	MaxTokens int    `yaml:"max_tokens"`
	Delimiter string `yaml:"delimiter"`
	Estimator string `yaml:"estimator"` // chars or tiktoken
}

// IngestionConfig bounds document uploads.
type IngestionConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	EmbedBatchSize    int      `yaml:"embed_batch_size"`
}

// RetrievalConfig holds retrieval thresholds and sampling cutoffs.
type RetrievalConfig struct {
	TopK            int           `yaml:"top_k"`
	SimilarityFloor float64       `yaml:"similarity_floor"`
	SmallCutoff     int           `yaml:"small_cutoff"`
	MediumCutoff    int           `yaml:"medium_cutoff"`
	MaxChunkChars   int           `yaml:"max_chunk_chars"`
	MaxContextChars int           `yaml:"max_context_chars"`
	Timeout         time.Duration `yaml:"timeout"`
}

// InterviewConfig controls the interview state machine.
type InterviewConfig struct {
	MaxQuestions          int      `yaml:"max_questions"`
	CompletionKeywords    []string `yaml:"completion_keywords"`
	PreviousQuestions     int      `yaml:"previous_questions"`
	OverviewOnAffirmative bool     `yaml:"overview_on_affirmative"`
}

// PersonaConfig names the assistant the extracted rules will train and its child persona.
type PersonaConfig struct {
	AssistantName string `yaml:"assistant_name"`
	ChildName     string `yaml:"child_name"`
	DefaultSlug   string `yaml:"default_slug"`
}

// ExtractionConfig controls rule extraction after completion.
type ExtractionConfig struct {
	Mode      string        `yaml:"mode"` // structured or text
	OutputDir string        `yaml:"output_dir"`
	Timeout   time.Duration `yaml:"timeout"`
}

// InboxConfig enables the upload inbox watcher.
type InboxConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the config file at path, applies defaults, expands paths and
// applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	cfg.ExpandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied and paths rooted at dataDir.
func Default(dataDir string) *Config {
	cfg := &Config{}
	ApplyEnv(cfg)
	setPath(&cfg.Storage.DatabasePath, filepath.Join(dataDir, "interviewd.db"))
	setPath(&cfg.Storage.VectorPath, filepath.Join(dataDir, "vectors"))
	setPath(&cfg.Storage.RuleIndexPath, filepath.Join(dataDir, "rules.bleve"))
	setPath(&cfg.Extraction.OutputDir, filepath.Join(dataDir, "rules"))
	setPath(&cfg.Inbox.Dir, filepath.Join(dataDir, "inbox"))
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overlays credentials and endpoints from the environment.
// INTERVIEWD_* variables win over OPENAI_API_KEY.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("INTERVIEWD_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("INTERVIEWD_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("INTERVIEWD_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if v := os.Getenv("INTERVIEWD_DATA_DIR"); v != "" {
		setPath(&cfg.Storage.DatabasePath, filepath.Join(v, "interviewd.db"))
		setPath(&cfg.Storage.VectorPath, filepath.Join(v, "vectors"))
		setPath(&cfg.Storage.RuleIndexPath, filepath.Join(v, "rules.bleve"))
		setPath(&cfg.Extraction.OutputDir, filepath.Join(v, "rules"))
		setPath(&cfg.Inbox.Dir, filepath.Join(v, "inbox"))
	}
}

func setPath(dst *string, path string) {
	if *dst == "" {
		*dst = path
	}
}

// ExpandPaths resolves every filesystem path against configDir.
func (c *Config) ExpandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.VectorPath = expandPath(c.Storage.VectorPath, configDir)
	c.Storage.RuleIndexPath = expandPath(c.Storage.RuleIndexPath, configDir)
	c.Extraction.OutputDir = expandPath(c.Extraction.OutputDir, configDir)
	c.Inbox.Dir = expandPath(c.Inbox.Dir, configDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if c.Retrieval.SimilarityFloor < 0 || c.Retrieval.SimilarityFloor > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_floor must be within [0,1], got %v", c.Retrieval.SimilarityFloor))
	}
	if c.Retrieval.SmallCutoff >= c.Retrieval.MediumCutoff {
		errs = append(errs, fmt.Errorf("retrieval.small_cutoff (%d) must be below medium_cutoff (%d)", c.Retrieval.SmallCutoff, c.Retrieval.MediumCutoff))
	}
	switch c.Storage.VectorBackend {
	case "chromem", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.vector_backend %q", c.Storage.VectorBackend))
	}
	switch c.Embedding.Provider {
	case "openai", "onnx", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	switch c.LLM.Provider {
	case "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	switch c.Extraction.Mode {
	case "structured", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown extraction.mode %q", c.Extraction.Mode))
	}
	switch c.Chunking.Estimator {
	case "chars", "tiktoken":
	default:
		errs = append(errs, fmt.Errorf("unknown chunking.estimator %q", c.Chunking.Estimator))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir,
// "~/" is the home directory and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
