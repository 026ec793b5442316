package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/domain"
)

func openFile(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(path, Options{Silent: true})
	if err != nil {
		t.Fatalf("OpenSQLite(%q): %v", path, err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "desk.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !os.IsNotExist(err) &&
		!strings.Contains(lower, "no such file or directory") &&
		!strings.Contains(lower, "unable to open database file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenSQLite_PragmasAndPool(t *testing.T) {
	db := openFile(t, filepath.Join(t.TempDir(), "desk.db"))
	t.Cleanup(func() { closeDB(t, db) })

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	ints := map[string]int{
		"synchronous":  1, // NORMAL
		"foreign_keys": 1,
		"busy_timeout": 5000,
	}
	for pragma, want := range ints {
		var got int
		if err := db.Raw("PRAGMA " + pragma + ";").Row().Scan(&got); err != nil {
			t.Fatalf("%s: %v", pragma, err)
		}
		if got != want {
			t.Errorf("%s = %d, want %d", pragma, got, want)
		}
	}

	sqlDB, _ := db.DB()
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Fatalf("MaxOpenConnections = %d, want 10", n)
	}

	m := db.Migrator()
	for _, tbl := range []any{&domain.Topic{}, &domain.Ban{}, &domain.Session{}, &domain.Relay{}, &domain.Setting{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("missing table for %T", tbl)
		}
	}
}

// Topics, bans and sessions must outlive the process that wrote them.
func TestOpenSQLite_StateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "desk.db")
	now := time.Now().UTC()

	db := openFile(t, path)
	if err := PutTopic(ctx, db, &domain.Topic{UserID: 42, ChatID: -100, TopicID: 9, Category: domain.CategoryReport, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("PutTopic: %v", err)
	}
	if _, err := UpsertBan(ctx, db, 7, now.Add(time.Hour), now); err != nil {
		t.Fatalf("UpsertBan: %v", err)
	}
	if err := db.Create(&domain.Session{BotID: 1, ChatID: 42, UserID: 42, Flow: domain.FlowRequest, LastActivity: now.UnixMilli()}).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	closeDB(t, db)

	db = openFile(t, path)
	t.Cleanup(func() { closeDB(t, db) })

	top, err := GetTopicByUser(ctx, db, 42)
	if err != nil || top.TopicID != 9 {
		t.Fatalf("topic after reopen: %+v err=%v", top, err)
	}
	ban, err := GetBan(ctx, db, 7)
	if err != nil || !ban.ActiveAt(now) {
		t.Fatalf("ban after reopen: %+v err=%v", ban, err)
	}
	var n int64
	db.Model(&domain.Session{}).Where("user_id = ?", 42).Count(&n)
	if n != 1 {
		t.Fatalf("sessions after reopen = %d, want 1", n)
	}
}

func TestOpenSQLite_WithTracingPlugin(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "traced.db"), Options{Tracing: true, Silent: true})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { closeDB(t, db) })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}
