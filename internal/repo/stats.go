// Package repo implements the durable store of the support desk, backed by
// GORM. This file provides the aggregate counters reported by the admin API.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DeskStats summarises the store at a point in time.
type DeskStats struct {
	Topics     int64 `json:"topics"`
	ActiveBans int64 `json:"active_bans"`
	Sessions   int64 `json:"sessions"`
}

// Stats counts topics, bans in force at now, and open sessions.
func Stats(ctx context.Context, db *gorm.DB, now time.Time) (DeskStats, error) {
	var (
		s   DeskStats
		err error
	)
	if s.Topics, err = CountTopics(ctx, db); err != nil {
		return DeskStats{}, err
	}
	if s.ActiveBans, err = CountActiveBans(ctx, db, now); err != nil {
		return DeskStats{}, err
	}
	if s.Sessions, err = CountSessions(ctx, db); err != nil {
		return DeskStats{}, err
	}
	return s, nil
}
