// Package judge turns a free-form usage request plus the user's declared
// rules into an allow/deny verdict by consulting an external oracle.
//
// The pipeline is fail-closed: any oracle failure (timeout, transport
// error, unparsable output) yields the fixed fallback deny verdict, never
// an error to the caller.
package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/blockmatelabs/blockmated/internal/user"
	"go.uber.org/zap"
)

// Request is one validation request as seen by the decision pipeline.
type Request struct {
	Text            string
	DurationMinutes *int
}

// Pipeline renders the prompt, invokes the oracle under a bounded timeout,
// and normalizes its output into a Verdict.
type Pipeline struct {
	oracle  Oracle
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline creates a decision pipeline. timeout bounds each oracle
// call; zero falls back to the client default.
func NewPipeline(oracle Oracle, timeout time.Duration, logger *zap.Logger) (*Pipeline, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		oracle:  oracle,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Decide produces a verdict for the request. It never returns an error:
// oracle failures are recovered locally by the fallback verdict and only
// logged. Persistence is the caller's job.
func (p *Pipeline) Decide(ctx context.Context, req Request, uc user.Context) Verdict {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.oracle.Judge(ctx, systemPrompt, renderUserPrompt(req.Text, req.DurationMinutes, uc))
	if err != nil {
		p.logger.Warn("judge oracle failed, using fallback verdict", zap.Error(err))
		fallbacksTotal.Inc()
		v := FallbackVerdict(p.now())
		decisionsTotal.WithLabelValues(string(v.Decision)).Inc()
		return v
	}

	verdict, err := parseVerdict(raw, p.now())
	if err != nil {
		p.logger.Warn("judge oracle returned malformed output, using fallback verdict", zap.Error(err))
		fallbacksTotal.Inc()
		v := FallbackVerdict(p.now())
		decisionsTotal.WithLabelValues(string(v.Decision)).Inc()
		return v
	}

	decisionsTotal.WithLabelValues(string(verdict.Decision)).Inc()
	return verdict
}
