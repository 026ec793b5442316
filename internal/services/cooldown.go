package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

const (
	defaultCooldownCapacity = 10_000
	cooldownEntryTTL        = 24 * time.Hour
)

// Cooldown rate-limits confirmations to one per window per user. The window
// is passed on every call so a settings change applies immediately.
type Cooldown struct {
	mu   sync.Mutex
	last otter.Cache[int64, time.Time]
}

// NewCooldown builds a cooldown tracking up to capacity users.
func NewCooldown(capacity int) (*Cooldown, error) {
	if capacity <= 0 {
		capacity = defaultCooldownCapacity
	}
	c, err := otter.MustBuilder[int64, time.Time](capacity).WithTTL(cooldownEntryTTL).Build()
	if err != nil {
		return nil, fmt.Errorf("cooldown cache with capacity %d: %w", capacity, err)
	}
	return &Cooldown{last: c}, nil
}

// Allow reports whether userID may receive a confirmation at now, and if so
// records now as the last one sent.
func (c *Cooldown) Allow(userID int64, now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.last.Get(userID); ok && now.Sub(prev) < window {
		return false
	}
	c.last.Set(userID, now)
	return true
}

// Reset forgets userID.
func (c *Cooldown) Reset(userID int64) {
	c.last.Delete(userID)
}
