//go:build hotkeys && (linux || windows)

package hotkeys

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.design/x/hotkey"

	"github.com/ukydev/geolock/internal/control"
)

const supported = true

var modifiers = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
}

var keys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
}

func parseChord(label string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(label), "+")
	var mods []hotkey.Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifiers[strings.TrimSpace(p)]
		if !ok {
			return nil, 0, fmt.Errorf("unknown modifier %q in %s", p, label)
		}
		mods = append(mods, m)
	}
	k, ok := keys[strings.TrimSpace(parts[len(parts)-1])]
	if !ok {
		return nil, 0, fmt.Errorf("unknown key in %s", label)
	}
	return mods, k, nil
}

type registered struct {
	hk    *hotkey.Hotkey
	chord Chord
}

// Run implements control.Source. The library needs every call on one OS
// thread, so the goroutine stays locked for the listener's lifetime. A panic
// from the library (no cgo, no display) is returned as an error.
func (l *Listener) Run(ctx context.Context, out chan<- control.Command) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupported, r)
		}
	}()

	regs := make([]registered, 0, len(l.chords))
	defer func() {
		for _, r := range regs {
			if err := r.hk.Unregister(); err != nil {
				log.WithError(err).WithField("hotkey", r.chord.Label).Warn("Failed to unregister hotkey")
			}
		}
	}()

	for _, c := range l.chords {
		mods, key, err := parseChord(c.Label)
		if err != nil {
			return err
		}
		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			return fmt.Errorf("register hotkey %s: %w", c.Label, err)
		}
		regs = append(regs, registered{hk: hk, chord: c})
		log.WithFields(log.Fields{"hotkey": c.Label, "command": c.Command.String()}).Info("Registered hotkey")
	}

	events := make(chan control.Command)
	for _, r := range regs {
		go func(r registered) {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-r.hk.Keydown():
					if !ok {
						return
					}
					if !send(ctx, events, r.chord.Command) {
						return
					}
				}
			}
		}(r)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-events:
			if !send(ctx, out, cmd) {
				return nil
			}
		}
	}
}
