package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/geolock/internal/metrics"
	"github.com/ukydev/geolock/internal/models"
)

const (
	// DefaultPollInterval matches the broadcast cadence.
	DefaultPollInterval = 5 * time.Second

	defaultPanicBackoff = time.Second
)

// Source produces the latest coordinate on demand. *Pipeline implements it.
type Source interface {
	FetchLatest(ctx context.Context) (models.Coordinate, bool, error)
}

// Poller is the single writer of a Store. It runs Source.FetchLatest on a fixed
// interval, replaces the store on every successful cycle and clears it when a
// cycle yields no coordinate, so readers never repeat a stale fix.
type Poller struct {
	source   Source
	store    *Store
	interval time.Duration
	backoff  time.Duration
	clock    clockwork.Clock
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// NewPoller creates a poller writing into store every interval.
func NewPoller(source Source, store *Store, interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		source:   source,
		store:    store,
		interval: interval,
		backoff:  defaultPanicBackoff,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Serve implements suture.Service. The first cycle runs immediately.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.cycle(ctx); err != nil {
			log.WithError(err).Error("Coordinate poll cycle failed unexpectedly")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(p.backoff):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (p *Poller) String() string { return "coordinate-poller" }

// cycle runs one fetch. Only unexpected failures (panics) are returned; fetch
// errors and absent coordinates clear the store here.
func (p *Poller) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	coord, ok, fetchErr := p.source.FetchLatest(ctx)
	switch {
	case fetchErr != nil:
		if ctx.Err() != nil {
			return nil
		}
		metrics.FetchTotal.WithLabelValues("error").Inc()
		p.store.Clear()
		log.WithError(fetchErr).Error("An error occurred while fetching messages")
	case !ok:
		metrics.FetchTotal.WithLabelValues("empty").Inc()
		p.store.Clear()
		log.Debug("No location in latest messages")
	default:
		metrics.FetchTotal.WithLabelValues("located").Inc()
		prev, had := p.store.Current()
		p.store.Replace(coord)
		metrics.CoordinateUpdates.Inc()
		if !had || prev != coord {
			log.WithFields(log.Fields{
				"latitude":  coord.Latitude,
				"longitude": coord.Longitude,
			}).Info("Received location")
		}
	}
	return nil
}
