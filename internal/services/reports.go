package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

// Reports answers read-only questions for the admin API.
type Reports struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// ActiveBans returns one page (1-based) of bans in force now, soonest to
// expire first, plus the total count.
func (r *Reports) ActiveBans(ctx context.Context, page, pageSize int) ([]domain.Ban, int64, error) {
	tr := otel.Tracer("services/Reports")
	ctx, span := tr.Start(ctx, "ActiveBans",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	now := r.Clock.Now()
	total, err := repo.CountActiveBans(ctx, r.DB, now)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("count bans: %w", err)
	}
	items, err := repo.ListActiveBansPage(ctx, r.DB, now, (page-1)*pageSize, pageSize)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("list bans: %w", err)
	}
	return items, total, nil
}

// Stats reports store-wide counters.
func (r *Reports) Stats(ctx context.Context) (repo.DeskStats, error) {
	ctx, span := otel.Tracer("services/Reports").Start(ctx, "Stats")
	defer span.End()
	return repo.Stats(ctx, r.DB, r.Clock.Now())
}
