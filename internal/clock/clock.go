// Package clock provides an injectable time source so TTLs, cooldowns and
// idle timeouts can be driven deterministically in tests.
//
// Production code takes a Clock (Real()); tests pass Fake(t0) and move time
// forward with Advance.
package clock

import "time"

// Clock abstracts the two time operations the routing core needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. C has capacity 1; slow consumers drop ticks.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	tk := time.NewTicker(d)
	return &Ticker{C: tk.C, stopFunc: tk.Stop}
}
