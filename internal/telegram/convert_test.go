package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/forumdesk/internal/domain"
)

func TestToMessage_Private(t *testing.T) {
	m := &tele.Message{
		ID:     7,
		Chat:   &tele.Chat{ID: 42, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: 42, FirstName: "Ann", LastName: " Lee ", Username: "ann"},
		Text:   "hi",
	}
	got := ToMessage(m)
	if !got.Private || got.ChatID != 42 || got.ID != 7 || got.Text != "hi" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.From != (domain.User{ID: 42, DisplayName: "Ann Lee", Handle: "ann"}) {
		t.Fatalf("unexpected sender: %+v", got.From)
	}
	if got.ReplyTo != nil || got.ForwardFrom != nil {
		t.Fatalf("expected no reply/forward: %+v", got)
	}
}

func TestToMessage_CaptionUsedForMedia(t *testing.T) {
	m := &tele.Message{ID: 1, Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}, Caption: "photo"}
	if got := ToMessage(m); got.Text != "photo" {
		t.Fatalf("want caption as text, got %q", got.Text)
	}
}

func TestToMessage_TopicRootReplyDropped(t *testing.T) {
	m := &tele.Message{
		ID:           20,
		Chat:         &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:       &tele.User{ID: 5},
		ThreadID:     11,
		TopicMessage: true,
		ReplyTo:      &tele.Message{ID: 11},
	}
	got := ToMessage(m)
	if got.Private || got.ThreadID != 11 {
		t.Fatalf("unexpected: %+v", got)
	}
	if got.ReplyTo != nil {
		t.Fatalf("topic root reply should be dropped, got %+v", got.ReplyTo)
	}
}

func TestToMessage_ExplicitReplyKept(t *testing.T) {
	m := &tele.Message{
		ID:           21,
		Chat:         &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:       &tele.User{ID: 5},
		ThreadID:     11,
		TopicMessage: true,
		ReplyTo: &tele.Message{
			ID:     15,
			Sender: &tele.User{ID: 999},
			Origin: &tele.MessageOrigin{Sender: &tele.User{ID: 42, FirstName: "Ann"}},
		},
	}
	got := ToMessage(m)
	if got.ReplyTo == nil || got.ReplyTo.ID != 15 || got.ReplyTo.FromID != 999 {
		t.Fatalf("unexpected reply ref: %+v", got.ReplyTo)
	}
	if got.ReplyTo.ForwardFrom == nil || got.ReplyTo.ForwardFrom.ID != 42 {
		t.Fatalf("forward origin lost: %+v", got.ReplyTo.ForwardFrom)
	}
}

func TestToMessage_NonTopicThreadIgnored(t *testing.T) {
	m := &tele.Message{ID: 3, Chat: &tele.Chat{ID: -100, Type: tele.ChatSuperGroup}, ThreadID: 9}
	if got := ToMessage(m); got.ThreadID != 0 {
		t.Fatalf("thread id outside a topic should be 0, got %d", got.ThreadID)
	}
}

func TestRoleOf(t *testing.T) {
	cases := map[tele.MemberStatus]domain.MemberRole{
		tele.Creator:       domain.RoleCreator,
		tele.Administrator: domain.RoleAdministrator,
		tele.Member:        domain.RoleMember,
		tele.Restricted:    domain.RoleRestricted,
		tele.Left:          domain.RoleLeft,
		tele.Kicked:        domain.RoleKicked,
	}
	for in, want := range cases {
		if got := roleOf(in); got != want {
			t.Errorf("roleOf(%q) = %q, want %q", in, got, want)
		}
	}
}
