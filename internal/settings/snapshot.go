package settings

import (
	"strings"
	"time"

	"github.com/tbourn/forumdesk/internal/domain"
)

// Setting keys.
const (
	KeyChatMode     = "chat_mode"
	KeyReplyMode    = "reply_mode"
	KeyCooldown     = "cooldown"
	KeyStateTimeout = "state_timeout"
	KeyTargetChat   = "target_chat"
	KeySingleThread = "single_thread"
	KeyBanPolicy    = "ban_policy"

	TextPrefix  = "text."
	EmojiPrefix = "emoji."
)

// Text names.
const (
	TextGreeting       = "greeting"
	TextConfirmation   = "confirmation"
	TextCancelled      = "cancelled"
	TextNoFlow         = "no_flow"
	TextDeliveryFailed = "delivery_failed"
	TextBanned         = "banned"
	TextUnbanned       = "unbanned"
	TextForbidden      = "forbidden"
	TextNoTarget       = "no_target"
	TextBadDuration    = "bad_duration"
	TextChatBound      = "chat_bound"
	TextChatIsBound    = "chat_already_bound"
)

// Snapshot is an immutable, typed view of the settings table.
type Snapshot struct {
	ChatMode     domain.ChatMode
	ReplyMode    domain.ReplyMode
	Cooldown     time.Duration
	StateTimeout time.Duration
	TargetChat   int64
	SingleThread int
	BanPolicy    domain.BanPolicy
	Texts        map[string]string
	Emojis       map[domain.Category]string
}

var defaultTexts = map[string]string{
	TextGreeting:       "Hello! Choose what you would like to contact us about.",
	TextConfirmation:   "Thanks, your message has been passed on to the team.",
	TextCancelled:      "Request cancelled.",
	TextNoFlow:         "Please pick a request type first with /start.",
	TextDeliveryFailed: "Delivery failed",
	TextBanned:         "User banned until",
	TextUnbanned:       "User unbanned.",
	TextForbidden:      "You are not allowed to do that.",
	TextNoTarget:       "Use this inside a user's topic or as a reply to their message.",
	TextBadDuration:    "Usage: /ban [duration], e.g. /ban 90, /ban 45m, /ban 2h, /ban 7d.",
	TextChatBound:      "This chat now receives user requests.",
	TextChatIsBound:    "This chat already receives user requests.",

	string(domain.CategoryApplication):   "Tell us about yourself and why you want to join.",
	string(domain.CategoryCollaboration): "Describe the collaboration you have in mind.",
	string(domain.CategoryReport):        "Describe what happened and who was involved.",
	string(domain.CategoryStaff):         "Which position are you applying for?",
	string(domain.CategoryEvent):         "Describe the event you would like to run.",
	string(domain.CategoryReward):        "Which reward are you requesting and why?",
	string(domain.CategoryOther):         "Write your message.",
}

// Defaults returns the snapshot used before anything is stored.
func Defaults() *Snapshot {
	return &Snapshot{
		ChatMode:     domain.ChatModeMultiple,
		ReplyMode:    domain.ReplyModeFree,
		Cooldown:     time.Minute,
		StateTimeout: 30 * time.Minute,
		BanPolicy:    domain.BanPolicyBoth,
		Texts:        map[string]string{},
		Emojis:       map[domain.Category]string{},
	}
}

// Text returns the configured text for name, falling back to the built-in
// default and finally to the name itself.
func (s *Snapshot) Text(name string) string {
	if v := s.Texts[name]; v != "" {
		return v
	}
	if v := defaultTexts[name]; v != "" {
		return v
	}
	return name
}

// Marker returns the label placed in square brackets in a topic name: the
// configured emoji of c, or the category tag itself.
func (s *Snapshot) Marker(c domain.Category) string {
	if v := strings.TrimSpace(s.Emojis[c]); v != "" {
		return v
	}
	return c.String()
}

// Multiple reports whether every user gets their own topic.
func (s *Snapshot) Multiple() bool { return s.ChatMode == domain.ChatModeMultiple }
