// Package hotkeys turns global key chords into control commands.
//
// The desktop listener links golang.design/x/hotkey, whose package init needs
// a display server on Linux. It is only compiled with the "hotkeys" build tag
// on Linux and Windows; every other build gets a listener whose Run reports
// ErrUnsupported, which the controller logs before carrying on with signals.
package hotkeys

import (
	"context"
	"errors"

	"github.com/ukydev/geolock/internal/control"
)

// ErrUnsupported is returned by Run when global hotkeys are not available.
var ErrUnsupported = errors.New("global hotkeys not supported in this build")

// Chord binds a key combination such as "ctrl+shift+q" to a command.
type Chord struct {
	Label   string
	Command control.Command
}

// DefaultChords are ctrl+shift+q (shutdown) and ctrl+shift+m (open viewer).
func DefaultChords() []Chord {
	return []Chord{
		{Label: "ctrl+shift+q", Command: control.CommandShutdown},
		{Label: "ctrl+shift+m", Command: control.CommandOpenViewer},
	}
}

// Supported reports whether this binary can capture global hotkeys.
func Supported() bool { return supported }

// Listener is a control.Source fed by global hotkeys.
type Listener struct {
	chords []Chord
}

// NewListener creates a listener for the given chords, or the defaults.
func NewListener(chords ...Chord) *Listener {
	if len(chords) == 0 {
		chords = DefaultChords()
	}
	return &Listener{chords: chords}
}

// Chords returns the bound chords.
func (l *Listener) Chords() []Chord { return l.chords }

func send(ctx context.Context, out chan<- control.Command, cmd control.Command) bool {
	select {
	case out <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}
