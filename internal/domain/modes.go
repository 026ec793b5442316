package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a mode or policy string is not recognised.
var ErrUnknownMode = errors.New("unknown mode")

// ChatMode selects how user conversations map onto the staff chat.
type ChatMode string

const (
	// ChatModeSingle routes every user into one shared thread.
	ChatModeSingle ChatMode = "single"
	// ChatModeMultiple gives every user their own topic.
	ChatModeMultiple ChatMode = "multiple"
)

// ParseChatMode validates a chat mode.
func ParseChatMode(s string) (ChatMode, error) {
	switch m := ChatMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ChatModeSingle, ChatModeMultiple:
		return m, nil
	}
	return "", fmt.Errorf("%w: chat mode %q", ErrUnknownMode, s)
}

// ReplyMode selects which staff messages reach the user.
type ReplyMode string

const (
	// ReplyModeFree relays every staff message in the user's topic.
	ReplyModeFree ReplyMode = "free"
	// ReplyModeNecessary relays only replies to messages this system relayed.
	ReplyModeNecessary ReplyMode = "necessary"
)

// ParseReplyMode validates a reply mode.
func ParseReplyMode(s string) (ReplyMode, error) {
	switch m := ReplyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ReplyModeFree, ReplyModeNecessary:
		return m, nil
	}
	return "", fmt.Errorf("%w: reply mode %q", ErrUnknownMode, s)
}

// BanPolicy decides who may ban whom from the staff chat.
type BanPolicy string

const (
	// BanPolicyStaffAdmin requires the actor to administer the staff chat.
	BanPolicyStaffAdmin BanPolicy = "staff_admin"
	// BanPolicyNotTargetAdmin forbids banning administrators of the staff chat.
	BanPolicyNotTargetAdmin BanPolicy = "not_target_admin"
	// BanPolicyBoth applies both of the above.
	BanPolicyBoth BanPolicy = "both"
	// BanPolicyAny lets any staff chat participant ban anyone.
	BanPolicyAny BanPolicy = "any"
)

// ParseBanPolicy validates a ban policy.
func ParseBanPolicy(s string) (BanPolicy, error) {
	switch p := BanPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case BanPolicyStaffAdmin, BanPolicyNotTargetAdmin, BanPolicyBoth, BanPolicyAny:
		return p, nil
	}
	return "", fmt.Errorf("%w: ban policy %q", ErrUnknownMode, s)
}

// RequiresActorAdmin reports whether the actor must be a staff chat admin.
func (p BanPolicy) RequiresActorAdmin() bool {
	return p == BanPolicyStaffAdmin || p == BanPolicyBoth
}

// ProtectsAdmins reports whether staff chat admins cannot be banned.
func (p BanPolicy) ProtectsAdmins() bool {
	return p == BanPolicyNotTargetAdmin || p == BanPolicyBoth
}

// Flow names the multi-step interaction a session is in.
type Flow string

const (
	FlowNone    Flow = ""
	FlowRequest Flow = "request"
)

// MemberRole is a participant's standing in a chat.
type MemberRole string

const (
	RoleCreator       MemberRole = "creator"
	RoleAdministrator MemberRole = "administrator"
	RoleMember        MemberRole = "member"
	RoleRestricted    MemberRole = "restricted"
	RoleLeft          MemberRole = "left"
	RoleKicked        MemberRole = "kicked"
)

// Admin reports whether the role administers the chat.
func (r MemberRole) Admin() bool {
	return r == RoleCreator || r == RoleAdministrator
}
