package telegram

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/forumdesk/internal/domain"
)

func toUser(u *tele.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	return domain.User{ID: u.ID, DisplayName: name, Handle: u.Username}
}

func forwardedFrom(m *tele.Message) *domain.User {
	if m == nil || m.Origin == nil || m.Origin.Sender == nil {
		return nil
	}
	u := toUser(m.Origin.Sender)
	return &u
}

// ToMessage reduces a platform message to what routing needs. In forum chats
// every message "replies" to its topic's opening message; that implicit reply
// is dropped so only explicit replies remain.
func ToMessage(m *tele.Message) domain.Message {
	out := domain.Message{
		ID:          m.ID,
		From:        toUser(m.Sender),
		ForwardFrom: forwardedFrom(m),
		Text:        m.Text,
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
		out.Private = m.Chat.Type == tele.ChatPrivate
	}
	if m.TopicMessage {
		out.ThreadID = m.ThreadID
	}
	if r := m.ReplyTo; r != nil && !(m.TopicMessage && r.ID == m.ThreadID) {
		ref := &domain.ReplyRef{ID: r.ID, ForwardFrom: forwardedFrom(r)}
		if r.Sender != nil {
			ref.FromID = r.Sender.ID
		}
		out.ReplyTo = ref
	}
	return out
}

func roleOf(s tele.MemberStatus) domain.MemberRole {
	switch s {
	case tele.Creator:
		return domain.RoleCreator
	case tele.Administrator:
		return domain.RoleAdministrator
	case tele.Restricted:
		return domain.RoleRestricted
	case tele.Left:
		return domain.RoleLeft
	case tele.Kicked:
		return domain.RoleKicked
	}
	return domain.RoleMember
}
