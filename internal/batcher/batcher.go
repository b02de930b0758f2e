// Package batcher implements the pure token-budget partitioning described in
// spec §4.3 (Batcher): split a job's pending inputs into order-preserving
// batches that each stay under a token budget, except that a single input
// exceeding the budget on its own still forms its own singleton batch rather
// than being dropped or split.
package batcher

import "github.com/tembo-io/vectorize-core/internal/model"

// Split partitions inputs into batches whose cumulative TokenEstimate does
// not exceed budget, preserving input order across and within batches. An
// input whose own TokenEstimate exceeds budget becomes a singleton batch.
// An empty inputs slice yields an empty (non-nil) batch slice.
func Split(inputs []model.Input, budget int32) [][]model.Input {
	batches := make([][]model.Input, 0)
	if len(inputs) == 0 {
		return batches
	}

	var current []model.Input
	var currentTokens int32

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
	}

	for _, in := range inputs {
		if in.TokenEstimate > budget {
			flush()
			batches = append(batches, []model.Input{in})
			continue
		}
		if currentTokens+in.TokenEstimate > budget {
			flush()
		}
		current = append(current, in)
		currentTokens += in.TokenEstimate
	}
	flush()

	return batches
}
