package ai

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPacingInterval is the minimum gap between consecutive scoring calls.
const DefaultPacingInterval = 500 * time.Millisecond

// PacedScorer decorates a Scorer with a token bucket so consecutive calls start at least the
// configured interval apart. The gap is measured start-to-start: a call that outlasts the
// interval is followed by the next one without waiting. The bucket holds a single token, so
// bursts are not possible.
type PacedScorer struct {
	next    Scorer
	limiter *rate.Limiter
	sleep   func(time.Duration)
	now     func() time.Time
}

// NewPacedScorer wraps next with a pacing floor. A non-positive interval disables pacing.
func NewPacedScorer(next Scorer, interval time.Duration) *PacedScorer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &PacedScorer{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Provider reports the provider of the wrapped scorer.
func (p *PacedScorer) Provider() string {
	return ProviderName(p.next)
}

// Score waits for the pacing slot and forwards the request. The wait ignores ctx cancellation;
// callers decide whether to issue the next call.
func (p *PacedScorer) Score(ctx context.Context, req ScoreRequest) (json.RawMessage, error) {
	now := p.now()
	reservation := p.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		p.sleep(delay)
	}

	return p.next.Score(ctx, req)
}
