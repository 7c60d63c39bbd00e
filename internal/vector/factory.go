package vector

import (
	"fmt"

	"github.com/hyperjump/interviewd/internal/config"
	"go.uber.org/zap"
)

// Backend names accepted by storage.vector_backend.
const (
	BackendChromem = "chromem"
	BackendMemory  = "memory"
)

// NewStore creates the Store selected by cfg.VectorBackend.
func NewStore(cfg config.StorageConfig, dimensions int, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.VectorBackend {
	case BackendChromem, "":
		return NewChromemStore(cfg.VectorPath, cfg.Collection, cfg.Compress, dimensions, WithLogger(logger))
	case BackendMemory:
		return NewMemoryStore(dimensions)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: chromem, memory)", cfg.VectorBackend)
	}
}
