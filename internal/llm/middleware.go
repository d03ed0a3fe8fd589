package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/time/rate"

	"repolens/internal/observability"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (rate limiting, retries, logging, metrics).
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// passthrough forwards everything to next; middlewares embed it and override
// the calls they decorate.
type passthrough struct{ next Client }

func (p passthrough) Name() string { return p.next.Name() }
func (p passthrough) Close() error { return p.next.Close() }
func (p passthrough) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	return p.next.GenerateText(ctx, req)
}
func (p passthrough) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	return p.next.GenerateImage(ctx, req)
}

// -------- Rate limiting --------

// RateLimit shares one token bucket across text and image calls.
// If rps <= 0 the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &rateLimited{passthrough: passthrough{next}, rl: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	passthrough
	rl *rate.Limiter
}

func (c *rateLimited) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateText(ctx, req)
}

func (c *rateLimited) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateImage(ctx, req)
}

// -------- Retries --------

// Retry re-issues failed calls up to attempts times with exponential backoff
// (base, 2*base, 4*base...). Context cancellation stops immediately.
func Retry(attempts int, base time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{passthrough: passthrough{next}, attempts: attempts, base: base}
	}
}

type retrying struct {
	passthrough
	attempts int
	base     time.Duration
}

func (c *retrying) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	var out *TextResult
	err := c.do(ctx, "text", func() error {
		var err error
		out, err = c.next.GenerateText(ctx, req)
		return err
	})
	return out, err
}

func (c *retrying) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	var out *Image
	err := c.do(ctx, "image", func() error {
		var err error
		out, err = c.next.GenerateImage(ctx, req)
		return err
	})
	return out, err
}

func (c *retrying) do(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == c.attempts-1 {
			break
		}
		wait := c.base * time.Duration(1<<attempt)
		log.Printf("llm: %s attempt %d/%d failed: %v (retry in %s)", op, attempt+1, c.attempts, lastErr, wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}

// -------- Instrumentation --------

// Instrument logs each call and records prometheus counters and latency.
func Instrument() Middleware {
	return func(next Client) Client {
		return &instrumented{passthrough: passthrough{next}}
	}
}

type instrumented struct {
	passthrough
}

func (c *instrumented) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	start := time.Now()
	out, err := c.next.GenerateText(ctx, req)
	c.observe("text", start, len(req.Prompt), err)
	return out, err
}

func (c *instrumented) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	start := time.Now()
	out, err := c.next.GenerateImage(ctx, req)
	c.observe("image", start, len(req.Prompt), err)
	return out, err
}

func (c *instrumented) observe(op string, start time.Time, promptBytes int, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNoPayload):
		outcome = "no_payload"
	case err != nil:
		outcome = "error"
	}
	observability.LLMCallsTotal.WithLabelValues(op, outcome).Inc()
	observability.LLMCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	log.Printf("llm: %s %s prompt=%dB outcome=%s elapsed=%s", c.Name(), op, promptBytes, outcome, elapsed.Round(time.Millisecond))
}
