package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

func newStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Setting{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	return New(db, zerolog.Nop(), clk), clk
}

func TestStore_DefaultsBeforeAnythingStored(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap := s.Snapshot()
	if snap.ChatMode != domain.ChatModeMultiple || snap.ReplyMode != domain.ReplyModeFree {
		t.Fatalf("unexpected modes: %+v", snap)
	}
	if snap.StateTimeout != 30*time.Minute || snap.BanPolicy != domain.BanPolicyBoth {
		t.Fatalf("unexpected defaults: %+v", snap)
	}
	if snap.Marker(domain.CategoryReport) != "report" {
		t.Fatalf("marker should fall back to the tag, got %q", snap.Marker(domain.CategoryReport))
	}
	if snap.Text("nonexistent") != "nonexistent" {
		t.Fatalf("unknown text should fall back to its name")
	}
}

func TestStore_SetUpdatesSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	if v, err := s.Set(ctx, KeyStateTimeout, "45m"); err != nil || v != "45m" {
		t.Fatalf("Set state_timeout = %q, %v", v, err)
	}
	if _, err := s.Set(ctx, KeyChatMode, "SINGLE"); err != nil {
		t.Fatalf("Set chat_mode: %v", err)
	}
	if _, err := s.Set(ctx, EmojiPrefix+"banned", "🚫"); err != nil {
		t.Fatalf("Set emoji: %v", err)
	}
	if _, err := s.Set(ctx, TextPrefix+TextGreeting, "Hi!"); err != nil {
		t.Fatalf("Set text: %v", err)
	}
	if v, err := s.Set(ctx, KeyCooldown, "120"); err != nil || v != "2m" {
		t.Fatalf("Set cooldown = %q, %v", v, err)
	}

	snap := s.Snapshot()
	if snap.StateTimeout != 45*time.Minute || snap.ChatMode != domain.ChatModeSingle || snap.Cooldown != 2*time.Minute {
		t.Fatalf("snapshot not refreshed: %+v", snap)
	}
	if snap.Marker(domain.CategoryBanned) != "🚫" || snap.Text(TextGreeting) != "Hi!" {
		t.Fatalf("emoji/text not applied: %+v", snap)
	}

	v, ok, err := s.Get(ctx, KeyChatMode)
	if err != nil || !ok || v != "single" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if _, ok, _ := s.Get(ctx, KeyTargetChat); ok {
		t.Fatalf("unset key reported as stored")
	}
}

func TestStore_SetRejectsInvalidAndKeepsPrior(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	if _, err := s.Set(ctx, KeyStateTimeout, "2h"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := s.Set(ctx, KeyStateTimeout, "abc")
	if !errors.Is(err, ErrInvalidSetting) || !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	if _, err := s.Set(ctx, KeyReplyMode, "sometimes"); !errors.Is(err, domain.ErrUnknownMode) {
		t.Fatalf("expected unknown mode, got %v", err)
	}
	if _, err := s.Set(ctx, "colour", "red"); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected unknown key rejection, got %v", err)
	}
	if _, err := s.Set(ctx, EmojiPrefix+"weather", "☀"); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	if _, err := s.Set(ctx, KeyStateTimeout, "0"); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero state timeout must be rejected, got %v", err)
	}

	v, _, _ := s.Get(ctx, KeyStateTimeout)
	if v != "2h" || s.Snapshot().StateTimeout != 2*time.Hour {
		t.Fatalf("prior value not kept: stored=%q snap=%v", v, s.Snapshot().StateTimeout)
	}
}

func TestStore_ReloadSkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	// Written behind the store's back, as another process might.
	_ = repo.PutSetting(ctx, s.DB, KeyCooldown, "soon")
	_ = repo.PutSetting(ctx, s.DB, KeyTargetChat, "-100123")

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap := s.Snapshot()
	if snap.Cooldown != time.Minute || snap.TargetChat != -100123 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestStore_RunRefreshesOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, clk := newStore(t)

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Second)
		close(done)
	}()

	_ = repo.PutSetting(context.Background(), s.DB, KeyReplyMode, "necessary")

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().ReplyMode != domain.ReplyModeNecessary {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never refreshed")
		}
		clk.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not exit after cancel")
	}
}

func TestStore_SeedFile(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, _ = s.Set(ctx, KeyChatMode, "single")

	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `
chat_mode: multiple
state_timeout: 15m
target_chat: -1001234567
text:
  greeting: Welcome
emoji:
  expired: "⌛"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	n, err := s.SeedFile(ctx, path)
	if err != nil {
		t.Fatalf("SeedFile: %v", err)
	}
	// chat_mode was already stored and is left alone.
	if n != 4 {
		t.Fatalf("expected 4 keys seeded, got %d", n)
	}
	snap := s.Snapshot()
	if snap.ChatMode != domain.ChatModeSingle {
		t.Fatalf("seed overwrote a stored value: %v", snap.ChatMode)
	}
	if snap.StateTimeout != 15*time.Minute || snap.TargetChat != -1001234567 ||
		snap.Text(TextGreeting) != "Welcome" || snap.Marker(domain.CategoryExpired) != "⌛" {
		t.Fatalf("seed not applied: %+v", snap)
	}
}

func TestStore_SeedRejectsInvalidDocument(t *testing.T) {
	s, _ := newStore(t)
	if _, err := s.Seed(context.Background(), []byte("cooldown: whenever\n")); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected invalid setting, got %v", err)
	}
	if _, err := s.Seed(context.Background(), []byte(":\n  - [")); err == nil {
		t.Fatalf("expected yaml parse error")
	}
}
