package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/embedding"
	"github.com/hyperjump/interviewd/internal/extract"
	"github.com/hyperjump/interviewd/internal/indexer"
	"github.com/hyperjump/interviewd/internal/interview"
	"github.com/hyperjump/interviewd/internal/keyword"
	"github.com/hyperjump/interviewd/internal/llm"
	"github.com/hyperjump/interviewd/internal/retrieval"
	"github.com/hyperjump/interviewd/internal/rules"
	"github.com/hyperjump/interviewd/internal/search"
	"github.com/hyperjump/interviewd/internal/storage"
	"github.com/hyperjump/interviewd/internal/vector"
)

// Components is everything a command needs, wired from one config.
type Components struct {
	Storage    storage.Storage
	Embedder   embedding.Embedder
	Vectors    vector.Store
	Completer  llm.Completer
	RuleIndex  keyword.RuleIndex
	Indexer    *indexer.Indexer
	Retriever  *retrieval.Retriever
	Pipeline   *rules.Pipeline
	Runner     *interview.Runner
	Interviews *interview.Service
	RuleSearch *search.Engine
}

// Close waits for in-flight extractions before closing the stores they write to.
func (c *Components) Close() {
	if c.Runner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = c.Runner.Shutdown(ctx)
		cancel()
	}
	if c.RuleIndex != nil {
		_ = c.RuleIndex.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logger),
		storage.WithListRetry(cfg.Storage.ListRetries, cfg.Storage.ListRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	c.Embedder = embedder

	vectors, err := vector.NewStore(cfg.Storage, embedder.Dimensions(), logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize vector store: %w", err))
	}
	c.Vectors = vectors

	completer, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize completion client: %w", err))
	}
	c.Completer = completer

	ruleIndex, err := keyword.NewBleveIndex(cfg.Storage.RuleIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize rule index: %w", err))
	}
	c.RuleIndex = ruleIndex

	estimator, err := indexer.NewEstimator(cfg.Chunking.Estimator)
	if err != nil {
		return fail(err)
	}
	chunker := indexer.NewChunker(cfg.Chunking.MaxTokens,
		indexer.WithEstimator(estimator),
		indexer.WithDelimiter(cfg.Chunking.Delimiter),
	)
	c.Indexer = indexer.NewIndexer(store, embedder, vectors, chunker, extract.NewExtractor(), cfg.Ingestion,
		indexer.WithLogger(logger))
	c.Retriever = retrieval.NewRetriever(embedder, vectors, cfg.Retrieval, retrieval.WithLogger(logger))

	extractor := rules.NewExtractor(completer, cfg.LLM, cfg.Persona, rules.WithLogger(logger))
	c.Pipeline = rules.NewPipeline(store, c.Retriever, extractor, cfg.Extraction.Mode,
		rules.WithPipelineLogger(logger),
		rules.WithMirror(rules.NewFileMirror(cfg.Extraction.OutputDir)),
		rules.WithIndex(ruleIndex),
	)
	c.Runner = interview.NewRunner(store, c.Pipeline, cfg.Extraction.Timeout, interview.WithRunnerLogger(logger))
	c.Interviews = interview.NewService(store, completer, c.Runner, cfg,
		interview.WithLogger(logger),
		interview.WithContextSource(c.Retriever),
	)
	c.RuleSearch = search.NewEngine(store, ruleIndex,
		search.WithLogger(logger),
		search.WithSpellChecker(keyword.NewSpellChecker(ruleIndex)),
	)
	return c, nil
}
