package geocode

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/ukydev/geolock/internal/metrics"
	"github.com/ukydev/geolock/internal/models"
)

// BreakerConfig tunes the circuit breaker around a resolver.
type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the circuit. Default: 5
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing. Default: 1m
	OpenTimeout time.Duration
}

// Breaker stops calling a failing resolver for a while. "No result" answers
// do not count as failures: the service is healthy, the coordinate is not.
type Breaker struct {
	next Resolver
	cb   *gobreaker.CircuitBreaker[models.ResolvedAddress]
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Resolver, cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "nominatim"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.ResolvedAddress](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || KindOf(err) == KindNoResult || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Resolver circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Breaker{next: next, cb: cb}
}

// Reverse implements Resolver.
func (b *Breaker) Reverse(ctx context.Context, c models.Coordinate) (models.ResolvedAddress, error) {
	addr, err := b.cb.Execute(func() (models.ResolvedAddress, error) {
		return b.next.Reverse(ctx, c)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindUnavailable, Coordinate: c, Err: err}
	}
	return addr, err
}

// State reports the breaker state: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
