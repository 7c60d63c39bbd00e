package watcher

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/interviewd/internal/fileid"
	"github.com/hyperjump/interviewd/internal/indexer"
	"github.com/hyperjump/interviewd/internal/models"
)

// Ingester is the part of the indexer the inbox drives.
type Ingester interface {
	IngestFile(ctx context.Context, path, sessionID string, expert models.ExpertInfo) (*indexer.IngestResult, error)
	DeleteDocument(ctx context.Context, sessionID, documentID string) (int, error)
}

// Inbox ingests files dropped into <dir>/<session_id>/ and deletes the document when the file
// is removed.
type Inbox struct {
	*Watcher
	ingester Ingester
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInbox creates an inbox over dir. Each ingestion runs with its own timeout.
func NewInbox(dir string, extensions []string, ingester Ingester, timeout time.Duration, opts ...WatcherOption) *Inbox {
	in := &Inbox{ingester: ingester, timeout: timeout}
	in.Watcher = NewWatcher(dir, extensions, in.ingest, in.remove, opts...)
	in.logger = in.Watcher.logger
	return in
}

func (in *Inbox) context() (context.Context, context.CancelFunc) {
	if in.timeout > 0 {
		return context.WithTimeout(context.Background(), in.timeout)
	}
	return context.WithCancel(context.Background())
}

func (in *Inbox) ingest(sessionID, path string) {
	ctx, cancel := in.context()
	defer cancel()
	res, err := in.ingester.IngestFile(ctx, path, sessionID, models.ExpertInfo{})
	if err != nil {
		in.logger.Warn("inbox ingest rejected", zap.String("session_id", sessionID), zap.String("path", path), zap.Error(err))
		return
	}
	if !res.Success {
		in.logger.Warn("inbox ingest failed", zap.String("session_id", sessionID), zap.String("path", path), zap.String("error", res.Error))
		return
	}
	in.logger.Info("inbox ingested file", zap.String("session_id", sessionID), zap.String("document_id", res.DocumentID),
		zap.Int("chunks", res.ChunksProcessed))
}

func (in *Inbox) remove(sessionID, path string) {
	ctx, cancel := in.context()
	defer cancel()
	docID := fileid.DocumentID(sessionID, filepath.Base(path))
	n, err := in.ingester.DeleteDocument(ctx, sessionID, docID)
	if err != nil {
		in.logger.Warn("inbox delete failed", zap.String("session_id", sessionID), zap.String("document_id", docID), zap.Error(err))
		return
	}
	in.logger.Info("inbox removed document", zap.String("session_id", sessionID), zap.String("document_id", docID), zap.Int("chunks", n))
}
