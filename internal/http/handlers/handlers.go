package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
	"github.com/tbourn/forumdesk/internal/utils"
)

// Moderator bans and unbans users; actor 0 bypasses the ban policy.
type Moderator interface {
	Ban(ctx context.Context, actorID, target int64, d time.Duration) (*domain.Ban, error)
	BanPermanently(ctx context.Context, actorID, target int64) (*domain.Ban, error)
	Unban(ctx context.Context, actorID, target int64) (bool, error)
}

// Reports serves read-only listings.
type Reports interface {
	ActiveBans(ctx context.Context, page, pageSize int) ([]domain.Ban, int64, error)
	Stats(ctx context.Context) (repo.DeskStats, error)
}

// TopicFinder maps staff topics back to users.
type TopicFinder interface {
	LookupUserForTopic(ctx context.Context, topicID int) (int64, bool, error)
	Topic(ctx context.Context, userID int64) (*domain.Topic, error)
}

// SettingsStore reads and validates runtime settings.
type SettingsStore interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) (string, error)
}

// Handlers groups the admin endpoints.
type Handlers struct {
	mod      Moderator
	reports  Reports
	topics   TopicFinder
	settings SettingsStore
}

// New binds the endpoints to their services.
func New(mod Moderator, reports Reports, topics TopicFinder, settings SettingsStore) *Handlers {
	return &Handlers{mod: mod, reports: reports, topics: topics, settings: settings}
}

// Pagination is the page metadata of list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}

// clampPagination reads page and page_size (default 20, at most 100).
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"), 20, 100)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	return n, err == nil && n != 0
}
