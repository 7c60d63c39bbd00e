package indexer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Ship the BPE ranks with the binary instead of downloading them at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenEstimator approximates how many model tokens a text occupies.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator counts four characters per token.
type CharEstimator struct{}

// Estimate returns the rune count divided by four.
func (CharEstimator) Estimate(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// TiktokenEstimator counts cl100k_base tokens.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	tiktokenOnce     sync.Once
	tiktokenInstance *TiktokenEstimator
	tiktokenErr      error
)

// NewTiktokenEstimator returns the shared cl100k_base estimator; the encoding is loaded once.
func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			tiktokenErr = fmt.Errorf("failed to load cl100k_base encoding: %w", err)
			return
		}
		tiktokenInstance = &TiktokenEstimator{encoding: enc}
	})
	return tiktokenInstance, tiktokenErr
}

// Estimate returns the exact token count of text.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(text, nil, nil))
}

// NewEstimator returns the estimator named by chunking.estimator ("chars" or "tiktoken").
func NewEstimator(name string) (TokenEstimator, error) {
	switch name {
	case "chars", "":
		return CharEstimator{}, nil
	case "tiktoken":
		return NewTiktokenEstimator()
	default:
		return nil, fmt.Errorf("unknown token estimator: %s (supported: chars, tiktoken)", name)
	}
}
