package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Message is an inbound chat message, reduced to what routing needs.
type Message struct {
	ID       int
	ChatID   int64
	ThreadID int
	Private  bool
	From     User
	// ForwardFrom is set when the message is a forwarded copy of another
	// user's message.
	ForwardFrom *User
	ReplyTo     *ReplyRef
	Text        string
}

// ReplyRef describes the message a Message replies to.
type ReplyRef struct {
	ID          int
	FromID      int64
	ForwardFrom *User
}

// ErrUnknownAction is returned for callback payloads no handler understands.
var ErrUnknownAction = errors.New("unknown action")

// ActionKind enumerates the user actions the presentation layer emits.
type ActionKind int

const (
	// ActionRequest opens a request flow under Action.Category.
	ActionRequest ActionKind = iota + 1
	// ActionReset cancels the current flow.
	ActionReset
)

// Action is a parsed callback payload.
type Action struct {
	Kind     ActionKind
	Category Category
}

const requestActionPrefix = "request-"

// RequestActionData renders the callback payload for opening a request.
func RequestActionData(c Category) string { return requestActionPrefix + string(c) }

// ResetActionData is the callback payload for cancelling a flow.
const ResetActionData = "reset"

// ParseAction decodes a callback payload. Unknown payloads and
// non-selectable categories are rejected.
func ParseAction(data string) (Action, error) {
	data = strings.TrimSpace(data)
	switch {
	case data == ResetActionData:
		return Action{Kind: ActionReset}, nil
	case strings.HasPrefix(data, requestActionPrefix):
		c, err := ParseCategory(strings.TrimPrefix(data, requestActionPrefix))
		if err != nil {
			return Action{}, fmt.Errorf("%w: %v", ErrUnknownAction, err)
		}
		if !c.Selectable() {
			return Action{}, fmt.Errorf("%w: category %q is not selectable", ErrUnknownAction, c)
		}
		return Action{Kind: ActionRequest, Category: c}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}
