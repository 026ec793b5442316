package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/settings"
)

const testStaffChat int64 = -1001

var errPlatform = errors.New("platform unavailable")

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Topic{}, &domain.Ban{}, &domain.Session{}, &domain.Relay{}, &domain.Setting{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- settings -----

type staticSettings struct {
	mu   sync.Mutex
	snap *settings.Snapshot
}

func newStaticSettings(mut ...func(*settings.Snapshot)) *staticSettings {
	s := settings.Defaults()
	s.TargetChat = testStaffChat
	for _, m := range mut {
		m(s)
	}
	return &staticSettings{snap: s}
}

func (s *staticSettings) Snapshot() *settings.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *staticSettings) update(m func(*settings.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.snap
	m(&next)
	s.snap = &next
}

// ----- transport -----

type copyCall struct {
	ToChat    int64
	ToThread  int
	FromChat  int64
	MessageID int
}

type textCall struct {
	ChatID   int64
	ThreadID int
	Text     string
}

type fakeTransport struct {
	mu sync.Mutex

	nextTopic  int
	nextMsg    int
	created    []string
	renamed    map[int]string
	copies     []copyCall
	lastCopyID int
	texts      []textCall
	roles      map[int64]domain.MemberRole

	createDelay time.Duration
	createErr   error
	renameErr   error
	copyErr     error
	// copyErrTo fails only copies addressed to this chat.
	copyErrTo int64
	roleErr   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextTopic: 100,
		nextMsg:   5000,
		renamed:   map[int]string{},
		roles:     map[int64]domain.MemberRole{},
	}
}

func (f *fakeTransport) CreateTopic(ctx context.Context, chatID int64, name string) (int, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextTopic++
	f.created = append(f.created, name)
	return f.nextTopic, nil
}

func (f *fakeTransport) RenameTopic(ctx context.Context, chatID int64, topicID int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renamed[topicID] = name
	return nil
}

func (f *fakeTransport) CopyMessage(ctx context.Context, toChat int64, toThread int, fromChat int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil && (f.copyErrTo == 0 || f.copyErrTo == toChat) {
		return 0, f.copyErr
	}
	f.nextMsg++
	f.copies = append(f.copies, copyCall{ToChat: toChat, ToThread: toThread, FromChat: fromChat, MessageID: messageID})
	f.lastCopyID = f.nextMsg
	return f.nextMsg, nil
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, threadID int, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsg++
	f.texts = append(f.texts, textCall{ChatID: chatID, ThreadID: threadID, Text: text})
	return f.nextMsg, nil
}

func (f *fakeTransport) MemberRole(ctx context.Context, chatID, userID int64) (domain.MemberRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleErr != nil {
		return "", f.roleErr
	}
	if r, ok := f.roles[userID]; ok {
		return r, nil
	}
	return domain.RoleMember, nil
}

func (f *fakeTransport) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeTransport) copyCalls() []copyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]copyCall(nil), f.copies...)
}

// lastCopy returns the id handed out for the most recent copy.
func (f *fakeTransport) lastCopy() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCopyID
}

func (f *fakeTransport) textCalls() []textCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]textCall(nil), f.texts...)
}

func (f *fakeTransport) renamedTo(topicID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renamed[topicID]
}

// ----- relabeler -----

type relabelCall struct {
	UserID   int64
	Category domain.Category
}

type fakeRelabeler struct {
	mu    sync.Mutex
	calls []relabelCall
	err   error
}

func (f *fakeRelabeler) Relabel(ctx context.Context, userID int64, category domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, relabelCall{userID, category})
	return f.err
}

func (f *fakeRelabeler) callsCopy() []relabelCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relabelCall(nil), f.calls...)
}

// ----- fixture -----

type fixture struct {
	db        *gorm.DB
	clk       *clock.FakeClock
	transport *fakeTransport
	settings  *staticSettings
	gate      *BanGate
	topics    *TopicDirectory
	sessions  *SessionManager
	mod       *Moderation
	router    *MessageRouter
}

const testBotID int64 = 999

func newFixture(t *testing.T, mut ...func(*settings.Snapshot)) *fixture {
	t.Helper()
	db := newServiceDB(t)
	clk := clock.Fake(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	tp := newFakeTransport()
	st := newStaticSettings(mut...)
	log := zerolog.Nop()

	gate := NewBanGate(db, time.Minute, log)
	topics := NewTopicDirectory(db, RepoTopics{}, tp, st, log)
	sessions := NewSessionManager(db, clk, testBotID, NewTrackedSet())
	cd, err := NewCooldown(100)
	if err != nil {
		t.Fatalf("NewCooldown: %v", err)
	}
	mod := &Moderation{DB: db, Gate: gate, Topics: topics, Transport: tp, Settings: st, Clock: clk, Log: log}
	router := &MessageRouter{
		DB:         db,
		Gate:       gate,
		Topics:     topics,
		Sessions:   sessions,
		Cooldown:   cd,
		Moderation: mod,
		Transport:  tp,
		Settings:   st,
		Clock:      clk,
		Log:        log,
		BotID:      testBotID,
	}
	return &fixture{db: db, clk: clk, transport: tp, settings: st, gate: gate, topics: topics, sessions: sessions, mod: mod, router: router}
}

func userMsg(id int, from domain.User) domain.Message {
	return domain.Message{ID: id, ChatID: from.ID, Private: true, From: from, Text: "hello"}
}

func staffMsg(id, thread int, from int64) domain.Message {
	return domain.Message{ID: id, ChatID: testStaffChat, ThreadID: thread, From: domain.User{ID: from, DisplayName: "Staff"}, Text: "reply"}
}
