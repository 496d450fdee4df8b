package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reqgather/internal/metrics"
)

// ErrAllAttemptsFailed is returned when the primary and the secondary model
// both failed for one call.
var ErrAllAttemptsFailed = errors.New("all llm attempts failed")

const DefaultTimeout = 60 * time.Second

// Fallback calls the primary client and retries once on the secondary when
// the primary fails or times out. Every attempt gets its own deadline.
type Fallback struct {
	primary   Client
	secondary Client
	timeout   time.Duration
	limiter   *rate.Limiter
	log       *zap.Logger
	metrics   *metrics.Metrics
}

type FallbackOption func(*Fallback)

func WithTimeout(d time.Duration) FallbackOption {
	return func(f *Fallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRateLimit caps outgoing calls per second across all sessions. Zero
// disables the limit.
func WithRateLimit(perSecond float64) FallbackOption {
	return func(f *Fallback) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithLogger(log *zap.Logger) FallbackOption {
	return func(f *Fallback) {
		if log != nil {
			f.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) FallbackOption {
	return func(f *Fallback) { f.metrics = m }
}

func NewFallback(primary, secondary Client, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary:   primary,
		secondary: secondary,
		timeout:   DefaultTimeout,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fallback) Name() string { return nameOf(f.primary, "primary") }

func (f *Fallback) Generate(ctx context.Context, messages []Message, opts Options) (Response, error) {
	resp, err := f.attempt(ctx, f.primary, nameOf(f.primary, "primary"), messages, opts)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return Response{}, fmt.Errorf("llm call cancelled: %w", ctx.Err())
	}
	if f.secondary == nil {
		return Response{}, errors.Join(ErrAllAttemptsFailed, err)
	}
	f.log.Warn("⚠️ primary model failed, trying fallback", zap.Error(err))

	resp, err2 := f.attempt(ctx, f.secondary, nameOf(f.secondary, "secondary"), messages, opts)
	if err2 == nil {
		return resp, nil
	}
	return Response{}, errors.Join(ErrAllAttemptsFailed,
		fmt.Errorf("primary: %w", err), fmt.Errorf("secondary: %w", err2))
}

func (f *Fallback) attempt(ctx context.Context, c Client, name string, messages []Message, opts Options) (Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit: %w", err)
		}
	}
	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.Generate(actx, messages, opts)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty completion")
	}
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (err != nil && errors.Is(actx.Err(), context.DeadlineExceeded)):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	f.metrics.LLMCall(name, outcome, time.Since(start))
	if err != nil {
		f.log.Warn("llm attempt failed", zap.String("model", name), zap.String("outcome", outcome), zap.Error(err))
		return Response{}, fmt.Errorf("%s: %w", name, err)
	}
	f.log.Debug("llm attempt ok",
		zap.String("model", name),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}
