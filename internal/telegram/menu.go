package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/settings"
)

var categoryLabels = map[domain.Category]string{
	domain.CategoryApplication:   "Join application",
	domain.CategoryEvent:         "Run an event",
	domain.CategoryStaff:         "Staff position",
	domain.CategoryReward:        "Request a reward",
	domain.CategoryCollaboration: "Collaboration",
	domain.CategoryReport:        "Report a problem",
	domain.CategoryOther:         "Other",
}

// RequestMenu renders one button per selectable category, prefixed with the
// configured marker when one is set.
func RequestMenu(snap *settings.Snapshot) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(domain.RequestCategories))
	for _, c := range domain.RequestCategories {
		label := categoryLabels[c]
		if e := snap.Emojis[c]; e != "" {
			label = e + " " + label
		}
		rows = append(rows, []tele.InlineButton{{Text: label, Data: domain.RequestActionData(c)}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// CancelMenu is the single "cancel" button shown while a request is open.
func CancelMenu() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: "Cancel", Data: domain.ResetActionData}},
	}}
}
