package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/forumdesk/internal/domain"
)

func TestBans_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Ban{})
	now := time.UnixMilli(1_700_000_000_000)

	if _, err := GetBan(ctx, db, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := UpsertBan(ctx, db, 5, now.Add(time.Hour), now); err != nil {
		t.Fatalf("UpsertBan: %v", err)
	}
	// Second upsert replaces the expiry instead of adding a row.
	if _, err := UpsertBan(ctx, db, 5, now.Add(2*time.Hour), now.Add(time.Minute)); err != nil {
		t.Fatalf("UpsertBan again: %v", err)
	}
	b, err := GetBan(ctx, db, 5)
	if err != nil {
		t.Fatalf("GetBan: %v", err)
	}
	if b.BanUntil != now.Add(2*time.Hour).UnixMilli() {
		t.Fatalf("ban_until = %d, want %d", b.BanUntil, now.Add(2*time.Hour).UnixMilli())
	}
	if !b.CreatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("created_at = %v, want the caller's clock", b.CreatedAt)
	}

	existed, err := DeleteBan(ctx, db, 5)
	if err != nil || !existed {
		t.Fatalf("DeleteBan = %v, %v", existed, err)
	}
	existed, err = DeleteBan(ctx, db, 5)
	if err != nil || existed {
		t.Fatalf("second DeleteBan = %v, %v", existed, err)
	}
}

func TestBans_ActiveListingExcludesExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Ban{})
	now := time.UnixMilli(1_700_000_000_000)

	_, _ = UpsertBan(ctx, db, 1, now.Add(-time.Second), now) // expired
	_, _ = UpsertBan(ctx, db, 2, now, now)                   // ends exactly now: not active
	_, _ = UpsertBan(ctx, db, 3, now.Add(time.Minute), now)
	_, _ = UpsertBan(ctx, db, 4, time.UnixMilli(domain.PermanentBanUntil), now)

	active, err := ListActiveBans(ctx, db, now)
	if err != nil {
		t.Fatalf("ListActiveBans: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active bans, got %d (%+v)", len(active), active)
	}
	n, _ := CountActiveBans(ctx, db, now)
	if n != 2 {
		t.Fatalf("CountActiveBans = %d", n)
	}

	page, err := ListActiveBansPage(ctx, db, now, 0, 1)
	if err != nil || len(page) != 1 || page[0].UserID != 3 {
		t.Fatalf("first page = %+v, %v", page, err)
	}
	page, _ = ListActiveBansPage(ctx, db, now, 1, 5)
	if len(page) != 1 || page[0].UserID != 4 {
		t.Fatalf("second page = %+v", page)
	}
}
