package sdk4me

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultThrottleWait applies when a throttled response has no Retry-After.
	DefaultThrottleWait = 300 * time.Second
	// MinThrottleWait is the shortest wait honoured after a throttled response.
	MinThrottleWait = 2 * time.Second
)

// throttleTransport blocks while the API answers 429, for at most budget.
type throttleTransport struct {
	next    Transport
	enabled bool
	budget  time.Duration
	clock   Clock
	logger  *slog.Logger
}

func (t *throttleTransport) Send(ctx context.Context, req *Request) *Response {
	if !t.enabled || t.budget <= 0 {
		return t.next.Send(ctx, req)
	}

	var start time.Time
	for {
		resp := t.next.Send(ctx, req)
		if start.IsZero() {
			start = t.clock.Now()
		}
		if !resp.Throttled() {
			return resp
		}

		wait := t.throttleWait(resp)
		if t.clock.Now().Sub(start)+wait >= t.budget {
			return resp
		}
		t.logger.WarnContext(ctx, "Request throttled, trying again",
			"delay", wait,
			"message", resp.Message())
		if err := t.clock.Sleep(ctx, wait); err != nil {
			return resp
		}
	}
}

func (t *throttleTransport) throttleWait(resp *Response) time.Duration {
	wait, ok := retryAfterDuration(resp.Header, t.clock.Now())
	if !ok {
		return DefaultThrottleWait
	}
	return max(wait, MinThrottleWait)
}
