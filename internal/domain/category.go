package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a tag does not name a Category.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the label a user's conversation is filed under. The first
// group is selectable by users; the second group are status markers the
// system applies to a topic.
type Category string

const (
	CategoryApplication   Category = "application"
	CategoryCollaboration Category = "collaboration"
	CategoryReport        Category = "report"
	CategoryStaff         Category = "staff"
	CategoryEvent         Category = "event"
	CategoryReward        Category = "reward"
	CategoryOther         Category = "other"

	CategoryExpired  Category = "expired"
	CategoryBanned   Category = "banned"
	CategoryUnbanned Category = "unbanned"
)

// RequestCategories lists the user-selectable categories in menu order.
var RequestCategories = []Category{
	CategoryApplication,
	CategoryEvent,
	CategoryStaff,
	CategoryReward,
	CategoryCollaboration,
	CategoryReport,
	CategoryOther,
}

// AllCategories lists every category, markers included.
var AllCategories = append(append([]Category{}, RequestCategories...),
	CategoryExpired, CategoryBanned, CategoryUnbanned)

// ParseCategory maps a tag to a Category, rejecting anything unknown.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryApplication, CategoryCollaboration, CategoryReport, CategoryStaff,
		CategoryEvent, CategoryReward, CategoryOther,
		CategoryExpired, CategoryBanned, CategoryUnbanned:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Selectable reports whether users may open a request under c.
func (c Category) Selectable() bool {
	switch c {
	case CategoryApplication, CategoryCollaboration, CategoryReport, CategoryStaff,
		CategoryEvent, CategoryReward, CategoryOther:
		return true
	}
	return false
}

// Marker reports whether c is a status marker rather than a request type.
func (c Category) Marker() bool {
	switch c {
	case CategoryExpired, CategoryBanned, CategoryUnbanned:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }
