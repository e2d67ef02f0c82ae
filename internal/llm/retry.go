package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spendsight/spendsight/internal/logger"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type retrying struct {
	next   Generator
	policy RetryPolicy
}

// WithRetry retries TransientError failures from g with exponential backoff.
// Any other error is returned immediately.
func WithRetry(g Generator, p RetryPolicy) Generator {
	return &retrying{next: g, policy: p}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	log := logger.FromContext(ctx)

	var out string
	attempt := 0
	op := func() error {
		attempt++
		text, err := r.next.Generate(ctx, req)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying model call")
	}

	if err := backoff.RetryNotify(op, r.backOff(ctx), notify); err != nil {
		return "", err
	}
	return out, nil
}

func (r *retrying) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := r.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
