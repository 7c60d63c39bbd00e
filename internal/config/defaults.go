package config

import "time"

// DefaultAllowedExtensions are the upload formats accepted when none are configured.
var DefaultAllowedExtensions = []string{"pdf", "docx", "pptx", "txt"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".interviewd/interviewd.db"
	}
	if cfg.Storage.VectorPath == "" {
		cfg.Storage.VectorPath = ".interviewd/vectors"
	}
	if cfg.Storage.VectorBackend == "" {
		cfg.Storage.VectorBackend = "chromem"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "document_chunks"
	}
	if cfg.Storage.RuleIndexPath == "" {
		cfg.Storage.RuleIndexPath = ".interviewd/rules.bleve"
	}
	if cfg.Storage.ListRetries == 0 {
		cfg.Storage.ListRetries = 3
	}
	if cfg.Storage.ListRetryDelay == 0 {
		cfg.Storage.ListRetryDelay = time.Second
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.RateLimit == 0 {
		cfg.Embedding.RateLimit = 5
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 4
	}
	applyCallDefaults(&cfg.LLM.Turn, CallConfig{Model: "gpt-3.5-turbo", MaxTokens: 1200, Temperature: 0.8, Timeout: 30 * time.Second})
	applyCallDefaults(&cfg.LLM.Extraction, CallConfig{Model: "gpt-4o-mini", MaxTokens: 1000, Temperature: 0.3, Timeout: 60 * time.Second})
	applyCallDefaults(&cfg.LLM.Structured, CallConfig{Model: "gpt-4o-mini", MaxTokens: 3000, Temperature: 0.2, Timeout: 120 * time.Second})

	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 500
	}
	if cfg.Chunking.Delimiter == "" {
		cfg.Chunking.Delimiter = ". "
	}
	if cfg.Chunking.Estimator == "" {
		cfg.Chunking.Estimator = "chars"
	}

	if cfg.Ingestion.AllowedExtensions == nil {
		cfg.Ingestion.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	if cfg.Ingestion.MaxFileSize == 0 {
		cfg.Ingestion.MaxFileSize = 10 << 20
	}
	if cfg.Ingestion.EmbedBatchSize == 0 {
		cfg.Ingestion.EmbedBatchSize = 32
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.SimilarityFloor == 0 {
		cfg.Retrieval.SimilarityFloor = 0.3
	}
	if cfg.Retrieval.SmallCutoff == 0 {
		cfg.Retrieval.SmallCutoff = 3
	}
	if cfg.Retrieval.MediumCutoff == 0 {
		cfg.Retrieval.MediumCutoff = 6
	}
	if cfg.Retrieval.MaxChunkChars == 0 {
		cfg.Retrieval.MaxChunkChars = 1200
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 12000
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 10 * time.Second
	}

	if cfg.Interview.MaxQuestions == 0 {
		cfg.Interview.MaxQuestions = 23
	}
	if cfg.Interview.CompletionKeywords == nil {
		cfg.Interview.CompletionKeywords = []string{"conclude", "summary"}
	}
	if cfg.Interview.PreviousQuestions == 0 {
		cfg.Interview.PreviousQuestions = 5
	}

	if cfg.Persona.AssistantName == "" {
		cfg.Persona.AssistantName = "Jamie"
	}
	if cfg.Persona.ChildName == "" {
		cfg.Persona.ChildName = "Timmy"
	}
	if cfg.Persona.DefaultSlug == "" {
		cfg.Persona.DefaultSlug = "jamie"
	}

	if cfg.Extraction.Mode == "" {
		cfg.Extraction.Mode = "structured"
	}
	if cfg.Extraction.OutputDir == "" {
		cfg.Extraction.OutputDir = ".interviewd/rules"
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 3 * time.Minute
	}

	if cfg.Inbox.Dir == "" {
		cfg.Inbox.Dir = ".interviewd/inbox"
	}
	if cfg.Inbox.Debounce == 0 {
		cfg.Inbox.Debounce = 400 * time.Millisecond
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyCallDefaults(c *CallConfig, def CallConfig) {
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
}
