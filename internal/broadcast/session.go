package broadcast

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/geolock/internal/metrics"
	"github.com/ukydev/geolock/internal/models"
)

// CoordinateReader is the read side of the current coordinate store.
type CoordinateReader interface {
	Current() (models.Coordinate, bool)
}

// Session pushes the current coordinate to a single viewer on a fixed cadence.
type Session struct {
	ID        string
	Transport string

	conn     Conn
	coords   CoordinateReader
	interval time.Duration
	clock    clockwork.Clock
	stop     <-chan struct{}
	done     <-chan struct{}
}

// Run sends one line per tick until the viewer disconnects, a send fails, or
// a stop signal fires. The first line goes out immediately. It returns
// ErrConnectionClosed for a disconnect and nil for a stop.
func (s *Session) Run() error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if s.stopping() {
			return nil
		}
		if err := s.tick(); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return ErrConnectionClosed
			}
			var panicErr *tickPanic
			if !errors.As(err, &panicErr) {
				return err
			}
			log.WithFields(log.Fields{
				"session":   s.ID,
				"transport": s.Transport,
			}).WithError(err).Error("Unexpected error in session, retrying on next tick")
		}

		select {
		case <-s.stop:
			return nil
		case <-s.done:
			return nil
		case <-s.conn.Closed():
			return ErrConnectionClosed
		case <-ticker.Chan():
		}
	}
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	case <-s.done:
		return true
	default:
		return false
	}
}

type tickPanic struct{ value any }

func (p *tickPanic) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (s *Session) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &tickPanic{value: r}
		}
	}()

	c, ok := s.coords.Current()
	if !ok {
		return nil
	}
	if err := s.conn.WriteLine(c.String()); err != nil {
		return fmt.Errorf("send to %s: %w", s.conn.RemoteAddr(), err)
	}
	metrics.BroadcastLines.WithLabelValues(s.Transport).Inc()
	return nil
}
