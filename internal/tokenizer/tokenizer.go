// Package tokenizer computes the canonical token_estimate used for
// token-budget batching (spec §3 Glossary: "Token estimate").
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// encoding is the BPE vocabulary every job uses for batching, independent of
// the embedding model a job ultimately dispatches to — spec §3 calls this a
// "deterministic BPE-style tokenizer", not the provider's own tokenizer.
const encoding = "cl100k_base"

// Estimator produces token estimates for trimmed input text.
type Estimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewEstimator constructs an Estimator, loading the cl100k_base vocabulary.
func NewEstimator() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrap(err, "tokenizer: load encoding")
	}
	return &Estimator{enc: enc}, nil
}

// Estimate trims outer whitespace from text (spec §4.2: "inputs are trimmed
// of outer whitespace") and returns the BPE token count. tiktoken-go's
// encoder is not documented safe for concurrent use, so calls are
// serialized; this runs on the synchronous detector path, never in the hot
// provider-dispatch loop.
func (e *Estimator) Estimate(text string) (int32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tokens := e.enc.Encode(trimmed, nil, nil)
	return int32(len(tokens)), nil
}
