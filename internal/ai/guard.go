package ai

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"studybot/internal/metrics"
	"studybot/internal/pkg/circuitbreaker"
	"studybot/internal/pkg/retry"
)

// guard runs one outbound call with pacing, a per-attempt timeout, retries of
// transient failures and a circuit breaker. Every error it returns is a *ServiceError.
type guard struct {
	service string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.Logger
}

func newGuard(service string, timeout time.Duration, rps float64, retryCfg retry.Config, logger *zap.Logger) *guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryCfg.ShouldRetry = IsTransient
	retryCfg.Logger = logger

	g := &guard{
		service: service,
		timeout: timeout,
		retry:   retryCfg,
		logger:  logger,
		breaker: circuitbreaker.New(service, circuitbreaker.Config{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 1,
			IsFailure:        IsTransient,
			Logger:           logger,
		}),
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return g
}

func (g *guard) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := g.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, g.retry, func() error {
			if g.limiter != nil {
				if err := g.limiter.Wait(ctx); err != nil {
					return Classify(g.service, err)
				}
			}
			callCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return Classify(g.service, fn(callCtx))
		})
	})
	err = Classify(g.service, err)
	metrics.ObserveExternalCall(g.service, op, time.Since(start), err)
	if err != nil {
		g.logger.Warn("external call failed",
			zap.String("service", g.service),
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	return err
}
