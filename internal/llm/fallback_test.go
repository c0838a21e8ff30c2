package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates_DeduplicatesPreservingOrder(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		fallbacks []string
		expected  []string
	}{
		{
			name:      "primary plus distinct fallbacks",
			primary:   "gemini-2.5-pro",
			fallbacks: []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"},
			expected:  []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
		},
		{
			name:      "primary duplicated in fallbacks",
			primary:   "gemini-2.5-flash",
			fallbacks: []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"},
			expected:  []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"},
		},
		{
			name:      "empty primary skipped",
			primary:   "",
			fallbacks: []string{"gemini-2.5-flash"},
			expected:  []string{"gemini-2.5-flash"},
		},
		{
			name:      "repeated fallbacks collapse to first occurrence",
			primary:   "a",
			fallbacks: []string{"b", "a", "b", "c"},
			expected:  []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Candidates(tt.primary, tt.fallbacks...))
		})
	}
}

func TestInvoke_FirstCandidateSucceeds(t *testing.T) {
	var attempted []string
	result, err := Invoke(context.Background(), []string{"a", "b"}, func(_ context.Context, model string) (string, error) {
		attempted = append(attempted, model)
		return "result-" + model, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "result-a", result)
	assert.Equal(t, []string{"a"}, attempted)
}

func TestInvoke_FallsBackInOrder(t *testing.T) {
	var attempted []string
	result, err := Invoke(context.Background(), []string{"a", "b", "c"}, func(_ context.Context, model string) (string, error) {
		attempted = append(attempted, model)
		if model != "c" {
			return "", fmt.Errorf("model %s unavailable", model)
		}
		return "result-c", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "result-c", result)
	assert.Equal(t, []string{"a", "b", "c"}, attempted)
}

func TestInvoke_SecondCandidateSucceeds(t *testing.T) {
	var attempted []string
	result, err := Invoke(context.Background(), []string{"primary", "fallback"}, func(_ context.Context, model string) (int, error) {
		attempted = append(attempted, model)
		if model == "primary" {
			return 0, errors.New("boom")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Len(t, attempted, 2)
}

func TestInvoke_AllFail_WrapsLastError(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	errC := errors.New("c failed")
	byModel := map[string]error{"a": errA, "b": errB, "c": errC}

	_, err := Invoke(context.Background(), []string{"a", "b", "c"}, func(_ context.Context, model string) (string, error) {
		return "", byModel[model]
	})

	require.Error(t, err)

	var exhausted *AllCandidatesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, "c", exhausted.LastModel)
	assert.ErrorIs(t, err, errC)
	assert.NotErrorIs(t, err, errA)
}

func TestInvoke_NoCandidates(t *testing.T) {
	_, err := Invoke(context.Background(), nil, func(_ context.Context, model string) (string, error) {
		t.Fatal("op should not run without candidates")
		return "", nil
	})

	var exhausted *AllCandidatesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Zero(t, exhausted.Attempts)
}

func TestInvoke_StopsAfterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempted []string
	_, err := Invoke(ctx, []string{"a", "b", "c"}, func(_ context.Context, model string) (string, error) {
		attempted = append(attempted, model)
		cancel()
		return "", errors.New("provider down")
	})

	var exhausted *AllCandidatesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{"a"}, attempted)
	assert.Equal(t, 1, exhausted.Attempts)
}
