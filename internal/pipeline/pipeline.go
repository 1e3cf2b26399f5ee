// Package pipeline turns raw channel messages into the single current
// coordinate the rest of the process reads.
package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/geolock/internal/fetcher"
	"github.com/ukydev/geolock/internal/models"
	"github.com/ukydev/geolock/internal/parser"
)

const defaultFetchTimeout = 15 * time.Second

// Pipeline runs one fetch+parse round trip per call. It holds no cache.
type Pipeline struct {
	fetcher      fetcher.Fetcher
	fetchTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetchTimeout bounds a single FetchLatest call.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// New creates a new coordinate pipeline on top of f.
func New(f fetcher.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{fetcher: f, fetchTimeout: defaultFetchTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchLatest fetches the channel once and parses the newest location message.
// The boolean is false when no usable coordinate was found; that is not an error.
// A non-nil error always wraps a *fetcher.FetchError.
func (p *Pipeline) FetchLatest(ctx context.Context) (models.Coordinate, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	msgs, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return models.Coordinate{}, false, err
	}

	for _, msg := range msgs {
		if !parser.ContainsMarker(msg.Content) {
			continue
		}
		coord, ok := parser.Parse(msg.Content)
		if !ok {
			log.WithField("message_id", msg.ID).Debug("Location message without usable coordinates")
		}
		// Only the newest location message counts, even when it is incomplete.
		return coord, ok, nil
	}
	return models.Coordinate{}, false, nil
}
