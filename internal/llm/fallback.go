package llm

import (
	"context"
	"errors"

	"github.com/comigor/thelp-go/internal/logger"
)

// ErrNoCandidates is returned when no model is configured for a request.
var ErrNoCandidates = errors.New("no candidate models configured")

// Candidates drops empty and repeated models, keeping the first occurrence.
func Candidates(models ...string) []string {
	out := make([]string, 0, len(models))
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// TryModels calls fn with each candidate in order and returns the first
// success with the model that produced it. A failed candidate is logged and
// the next one tried; the last error is returned once candidates run out.
// Errors for which stop returns true, and context cancellation, end the chain
// immediately.
func TryModels[T any](ctx context.Context, candidates []string, stop func(error) bool, fn func(ctx context.Context, model string) (T, error)) (T, string, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, "", ErrNoCandidates
	}

	log := logger.FromContext(ctx)
	var lastErr error
	for i, model := range candidates {
		out, err := fn(ctx, model)
		if err == nil {
			return out, model, nil
		}
		lastErr = err
		log.Warn("model failed", "model", model, "attempt", i+1, "candidates", len(candidates), "error", err)
		if ctx.Err() != nil || (stop != nil && stop(err)) {
			break
		}
	}
	return zero, "", lastErr
}
