// Package services holds the routing and access-control core of the desk:
// the topic directory, the ban gate, session bookkeeping with its timeout
// sweeper, moderation, and the message router that ties them together.
// This file centralizes service-level error values so that callers can check
// them with errors.Is.
//
// Translation into user-facing texts or HTTP status codes is performed by the
// telegram and http layers.
package services

import (
	"errors"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
	"github.com/tbourn/forumdesk/internal/settings"
)

var (
	// ErrTransport wraps any failure of the chat platform. Callers may retry;
	// nothing was persisted when it is returned.
	ErrTransport = errors.New("transport failure")

	// ErrNotFound is the repository's not-found error, re-exported so callers
	// of this package need not import repo.
	ErrNotFound = repo.ErrNotFound

	// ErrForbidden is returned when a moderation actor fails the ban policy.
	ErrForbidden = errors.New("forbidden")

	// ErrNoTopic is returned when a message cannot be attributed to a user.
	ErrNoTopic = errors.New("no topic for message")

	// ErrNoTargetChat is returned while the staff forum chat is not configured.
	ErrNoTargetChat = errors.New("target chat not configured")

	// ErrNotInFlow is returned when a user writes without an open request.
	ErrNotInFlow = errors.New("user is not in a request flow")
)

// Re-exported from the packages that own them.
var (
	ErrInvalidDuration = settings.ErrInvalidDuration
	ErrInvalidSetting  = settings.ErrInvalidSetting
	ErrUnknownCategory = domain.ErrUnknownCategory
	ErrUnknownAction   = domain.ErrUnknownAction
)
