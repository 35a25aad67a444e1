package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/metrics"
	"peerlearn_server/models"
)

// GuardOptions bounds calls to a Scorer.
type GuardOptions struct {
	Timeout          time.Duration
	FailureThreshold uint32
	OpenFor          time.Duration
}

// Guarded wraps a Scorer with a per-call timeout and a circuit breaker.
// Every failure surfaces as apperrors.ErrScoringUnavailable.
type Guarded struct {
	inner   Scorer
	name    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewGuarded(name string, inner Scorer, opts GuardOptions, log *zap.Logger) *Guarded {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Scoring circuit state changed",
				zap.String("scorer", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Guarded{inner: inner, name: name, timeout: opts.Timeout, breaker: breaker, log: log}
}

// State reports the breaker state, mostly for diagnostics and tests.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guarded) Score(ctx context.Context, current Profile, candidates []Profile) ([]models.ScoredCandidate, error) {
	start := time.Now()

	out, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.inner.Score(callCtx, current, candidates)
	})

	switch {
	case err == nil:
		metrics.RecordScoring("ok", time.Since(start))
		return out.([]models.ScoredCandidate), nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordScoring("rejected", time.Since(start))
		return nil, apperrors.Wrap(apperrors.CodeScoringUnavailable, "scoring temporarily disabled", err)
	default:
		metrics.RecordScoring("error", time.Since(start))
		g.log.Warn("Scoring call failed", zap.String("scorer", g.name), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.CodeScoringUnavailable, "scoring service unavailable", err)
	}
}
