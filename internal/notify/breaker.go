package notify

import (
	"context"
	"time"

	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[SendResult] {
	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[SendResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notification breaker state changed")
		},
	})
}

type breakerSMS struct {
	next SMSSender
	cb   *gobreaker.CircuitBreaker[SendResult]
}

// WithSMSBreaker fails fast with gobreaker.ErrOpenState while the gateway
// keeps failing.
func WithSMSBreaker(next SMSSender, cfg BreakerConfig) SMSSender {
	return &breakerSMS{next: next, cb: newBreaker("sms", cfg)}
}

func (b *breakerSMS) SendSMS(ctx context.Context, to, msg string) (SendResult, error) {
	return b.cb.Execute(func() (SendResult, error) {
		return b.next.SendSMS(ctx, to, msg)
	})
}

type breakerEmail struct {
	next EmailSender
	cb   *gobreaker.CircuitBreaker[SendResult]
}

func WithEmailBreaker(next EmailSender, cfg BreakerConfig) EmailSender {
	return &breakerEmail{next: next, cb: newBreaker("email", cfg)}
}

func (b *breakerEmail) SendEmail(ctx context.Context, to []string, subject, body string) (SendResult, error) {
	return b.cb.Execute(func() (SendResult, error) {
		return b.next.SendEmail(ctx, to, subject, body)
	})
}
