package ai

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingScorer struct {
	calls int
}

func (c *countingScorer) Score(context.Context, ScoreRequest) (json.RawMessage, error) {
	c.calls++
	return json.RawMessage(`{}`), nil
}

func TestPacedScorerSpacesConsecutiveCalls(t *testing.T) {
	next := &countingScorer{}
	paced := NewPacedScorer(next, time.Second)

	var slept []time.Duration
	paced.sleep = func(d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 3; i++ {
		_, err := paced.Score(context.Background(), ScoreRequest{})
		require.NoError(t, err)
	}

	require.Equal(t, 3, next.calls)
	require.Len(t, slept, 2, "first call must not wait")
	for _, d := range slept {
		require.Greater(t, d, 500*time.Millisecond)
	}
}

func TestPacedScorerMeasuresGapBetweenCallStarts(t *testing.T) {
	next := &countingScorer{}
	paced := NewPacedScorer(next, time.Second)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	paced.now = func() time.Time { return clock }
	var slept []time.Duration
	paced.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}

	_, err := paced.Score(context.Background(), ScoreRequest{})
	require.NoError(t, err)

	// the first call ran longer than the interval
	clock = clock.Add(1500 * time.Millisecond)
	_, err = paced.Score(context.Background(), ScoreRequest{})
	require.NoError(t, err)
	require.Empty(t, slept)

	clock = clock.Add(300 * time.Millisecond)
	_, err = paced.Score(context.Background(), ScoreRequest{})
	require.NoError(t, err)
	require.Len(t, slept, 1)
	require.InDelta(t, float64(700*time.Millisecond), float64(slept[0]), float64(time.Millisecond))
	require.Equal(t, 3, next.calls)
}

func TestPacedScorerIgnoresCancellationWhileWaiting(t *testing.T) {
	next := &countingScorer{}
	paced := NewPacedScorer(next, time.Second)
	paced.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := paced.Score(ctx, ScoreRequest{})
	require.NoError(t, err)
	_, err = paced.Score(ctx, ScoreRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
}

func TestPacedScorerWithoutInterval(t *testing.T) {
	next := &countingScorer{}
	paced := NewPacedScorer(next, 0)
	paced.sleep = func(time.Duration) { t.Fatal("unexpected wait") }

	for i := 0; i < 5; i++ {
		_, err := paced.Score(context.Background(), ScoreRequest{})
		require.NoError(t, err)
	}
	require.Equal(t, "unknown", paced.Provider())
}
