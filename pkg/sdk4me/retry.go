package sdk4me

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryInitialInterval = 2 * time.Second
	retryMultiplier      = 2
	// effectively unbounded; the retry budget is what ends the loop
	retryMaxInterval = 1000 * time.Hour
)

// retryTransport resends requests that got no answer or a 5xx answer. The
// delay doubles after every attempt (2s, 4s, 8s, ...) and retrying stops when
// the next delay would end beyond the budget.
type retryTransport struct {
	next   Transport
	budget time.Duration
	clock  Clock
	logger *slog.Logger
}

func newRetryBackOff(clock Clock) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = retryMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0
	b.Clock = clock
	b.Reset()
	return b
}

func (t *retryTransport) Send(ctx context.Context, req *Request) *Response {
	if t.budget <= 0 {
		return t.next.Send(ctx, req)
	}

	b := newRetryBackOff(t.clock)
	var start time.Time
	for attempt := 1; ; attempt++ {
		resp := t.next.Send(ctx, req)
		if start.IsZero() {
			start = t.clock.Now()
		}
		if !resp.Failure() {
			return resp
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop || t.clock.Now().Sub(start)+delay >= t.budget {
			return resp
		}
		t.logger.WarnContext(ctx, "Request failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"message", resp.Message())
		if err := t.clock.Sleep(ctx, delay); err != nil {
			return resp
		}
	}
}
