//go:build !hotkeys || !(linux || windows)

package hotkeys

import (
	"context"

	"github.com/ukydev/geolock/internal/control"
)

const supported = false

// Run implements control.Source.
func (l *Listener) Run(ctx context.Context, out chan<- control.Command) error {
	return ErrUnsupported
}
