package session

import (
	"time"

	"github.com/benbjohnson/clock"
)

// debouncer fires once after a quiet period. Every reset cancels the
// pending timer and starts a new one. A timer that already fired when it
// was cancelled is recognised by its stale token.
type debouncer struct {
	clock clock.Clock
	quiet time.Duration
	fire  func(token uint64)

	timer *clock.Timer
	token uint64
}

func newDebouncer(c clock.Clock, quiet time.Duration, fire func(token uint64)) *debouncer {
	return &debouncer{clock: c, quiet: quiet, fire: fire}
}

func (d *debouncer) reset() {
	d.stop()
	d.token++
	token := d.token
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(token) })
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fired reports whether token belongs to the pending timer and clears it.
func (d *debouncer) fired(token uint64) bool {
	if d.timer == nil || token != d.token {
		return false
	}
	d.timer = nil
	return true
}
