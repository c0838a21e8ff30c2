package llm

import (
	"context"
	"fmt"
	"log"
)

// AllCandidatesExhaustedError reports that every model candidate failed.
// It wraps the error from the last candidate attempted.
type AllCandidatesExhaustedError struct {
	Attempts  int
	LastModel string
	Err       error
}

func (e *AllCandidatesExhaustedError) Error() string {
	return fmt.Sprintf("all %d model candidates failed, last attempt (%s): %v", e.Attempts, e.LastModel, e.Err)
}

func (e *AllCandidatesExhaustedError) Unwrap() error {
	return e.Err
}

// Invoke runs op against each candidate model in list order and returns the
// first successful result. Each candidate is tried at most once and no delay
// is inserted between attempts. If every candidate fails, the returned error
// is an AllCandidatesExhaustedError wrapping the last candidate's failure.
func Invoke[T any](ctx context.Context, candidates []string, op func(ctx context.Context, model string) (T, error)) (T, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, &AllCandidatesExhaustedError{Err: fmt.Errorf("no candidates configured")}
	}

	var lastErr error
	var lastModel string
	attempts := 0
	for i, model := range candidates {
		attempts++
		result, err := op(ctx, model)
		if err == nil {
			if i > 0 {
				log.Printf("Model %s succeeded after %d failed attempt(s)", model, i)
			}
			return result, nil
		}
		log.Printf("Model %s failed (attempt %d/%d): %v", model, i+1, len(candidates), err)
		lastErr = err
		lastModel = model

		if ctx.Err() != nil {
			break
		}
	}

	return zero, &AllCandidatesExhaustedError{
		Attempts:  attempts,
		LastModel: lastModel,
		Err:       lastErr,
	}
}
