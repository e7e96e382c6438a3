package sdk4me

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// stubTransport replays responses; the last one repeats.
type stubTransport struct {
	mu        sync.Mutex
	responses []*Response
	requests  []*Request
}

func (s *stubTransport) Send(_ context.Context, req *Request) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.requests = append(s.requests, req)
	return s.responses[i]
}

func (s *stubTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonResponse(status int, body string) *Response {
	return newResponse(status, "", nil, []byte(body))
}

func newTestClient(t *testing.T, host string, opts ...Option) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{
		WithHost(host),
		WithAccessToken("secret"),
		WithClock(clock),
		WithLogger(discardLogger()),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, clock
}
