package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/services"
	"github.com/tbourn/forumdesk/internal/settings"
)

// BanRequest is the body of PUT /bans/:user_id. An empty duration bans
// permanently; "0" is rejected.
type BanRequest struct {
	Duration string `json:"duration"`
}

// BanView is a ban as the API shows it.
type BanView struct {
	UserID    int64     `json:"user_id"`
	Until     time.Time `json:"until"`
	Permanent bool      `json:"permanent"`
}

func banView(b domain.Ban) BanView {
	return BanView{UserID: b.UserID, Until: b.Until(), Permanent: b.Permanent()}
}

// ListBansResponse is a page of active bans.
type ListBansResponse struct {
	Bans       []BanView  `json:"bans"`
	Pagination Pagination `json:"pagination"`
}

// ListBans handles GET /bans?page=&page_size=.
func (h *Handlers) ListBans(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.reports.ActiveBans(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	views := make([]BanView, 0, len(items))
	for _, b := range items {
		views = append(views, banView(b))
	}
	ok(c, http.StatusOK, ListBansResponse{Bans: views, Pagination: newPagination(page, pageSize, total)})
}

// PutBan handles PUT /bans/:user_id.
func (h *Handlers) PutBan(c *gin.Context) {
	userID, valid := int64Param(c, "user_id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be a non-zero integer")
		return
	}
	var req BanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	ctx := c.Request.Context()
	var (
		ban *domain.Ban
		err error
	)
	if req.Duration == "" {
		ban, err = h.mod.BanPermanently(ctx, services.SystemActor, userID)
	} else {
		var d time.Duration
		if d, err = settings.ParseDuration(req.Duration); err == nil {
			ban, err = h.mod.Ban(ctx, services.SystemActor, userID, d)
		}
	}
	if errors.Is(err, settings.ErrInvalidDuration) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDuration, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, banView(*ban))
}

// DeleteBan handles DELETE /bans/:user_id.
func (h *Handlers) DeleteBan(c *gin.Context) {
	userID, valid := int64Param(c, "user_id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be a non-zero integer")
		return
	}
	existed, err := h.mod.Unban(c.Request.Context(), services.SystemActor, userID)
	switch {
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	case !existed:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user is not banned")
		return
	}
	noContent(c)
}
