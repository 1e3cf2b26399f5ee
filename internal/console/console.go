// Package console renders the operator's terminal view: a startup banner and a
// single status line with the resolved address of the current coordinate.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"

	"github.com/ukydev/geolock/internal/geocode"
	"github.com/ukydev/geolock/internal/models"
)

// DefaultInterval is how often the status line is refreshed.
const DefaultInterval = 10 * time.Second

const (
	cursorUp  = "\033[F"
	clearLine = "\r\033[K"
	bold      = "\033[1;31m"
	hint      = "\033[1;33m"
	reset     = "\033[0m"
)

const logo = `
   ____ _____ ___  _     ___   ____ _  __
  / ___| ____/ _ \| |   / _ \ / ___| |/ /
 | |  _|  _|| | | | |  | | | | |   | ' /
 | |_| | |__| |_| | |__| |_| | |___| . \
  \____|_____\___/|_____\___/ \____|_|\_\
`

// CoordinateReader is the read side of the coordinate store.
type CoordinateReader interface {
	Current() (models.Coordinate, bool)
}

// Resolver turns a coordinate into an address. *geocode.Pool implements it.
type Resolver interface {
	Resolve(ctx context.Context, c models.Coordinate) (models.ResolvedAddress, error)
}

// Config configures a Display.
type Config struct {
	Out      io.Writer
	Interval time.Duration
	Clock    clockwork.Clock
	// Hints are printed under the banner, one per line.
	Hints []string
	// Terminal forces in-place redraws on or off. Nil means detect from Out.
	Terminal *bool
}

// Display periodically prints the address of the current coordinate.
type Display struct {
	out      io.Writer
	interval time.Duration
	clock    clockwork.Clock
	hints    []string
	terminal bool

	coords   CoordinateReader
	resolver Resolver
	stop     <-chan struct{}

	mu          sync.Mutex
	statusShown bool
}

// New creates a display that stops once stop is closed.
func New(cfg Config, coords CoordinateReader, resolver Resolver, stop <-chan struct{}) *Display {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	terminal := isTerminal(cfg.Out)
	if cfg.Terminal != nil {
		terminal = *cfg.Terminal
	}
	return &Display{
		out:      cfg.Out,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		hints:    cfg.Hints,
		terminal: terminal,
		coords:   coords,
		resolver: resolver,
		stop:     stop,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Banner prints the logo, the hotkey hints and the initial status line.
func (d *Display) Banner() {
	var b strings.Builder
	d.style(&b, bold, logo)
	b.WriteString("\n")
	for _, h := range d.hints {
		d.style(&b, hint, "**"+h)
		b.WriteString("\n")
	}
	b.WriteString("\nInitializing....\n")

	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = io.WriteString(d.out, b.String())
	d.statusShown = true
}

func (d *Display) style(b *strings.Builder, code, s string) {
	if !d.terminal {
		b.WriteString(s)
		return
	}
	b.WriteString(code)
	b.WriteString(s)
	b.WriteString(reset)
}

// Serve implements suture.Service. It refreshes immediately, then every
// interval, until ctx is done or the stop channel closes.
func (d *Display) Serve(ctx context.Context) error {
	resolveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.stop:
			cancel()
		case <-resolveCtx.Done():
		}
	}()

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.refresh(resolveCtx)

		select {
		case <-d.stop:
			d.printf("\nExiting...\n")
			return suture.ErrDoNotRestart
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (d *Display) String() string { return "console-display" }

func (d *Display) refresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("An error occurred while displaying location")
		}
	}()

	c, ok := d.coords.Current()
	if !ok {
		d.status("Invalid coordinates")
		return
	}

	addr, err := d.resolver.Resolve(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithFields(log.Fields{
			"kind":      geocode.KindOf(err),
			"latitude":  c.Latitude,
			"longitude": c.Longitude,
		}).WithError(err).Error("An error occurred while fetching location")
		return
	}
	d.status("Location: " + addr.Address)
}

// status replaces the previous status line on a terminal and appends otherwise.
func (d *Display) status(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	if d.terminal && d.statusShown {
		b.WriteString(cursorUp)
		b.WriteString(clearLine)
	}
	b.WriteString(line)
	b.WriteString("\n")
	_, _ = io.WriteString(d.out, b.String())
	d.statusShown = true
}

func (d *Display) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintf(d.out, format, args...)
	d.statusShown = false
}
