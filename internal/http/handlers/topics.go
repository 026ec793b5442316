package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forumdesk/internal/services"
)

// GetTopic handles GET /topics/:topic_id, the staff-side lookup of who a
// thread belongs to.
func (h *Handlers) GetTopic(c *gin.Context) {
	topicID, err := strconv.Atoi(c.Param("topic_id"))
	if err != nil || topicID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "topic_id must be a positive integer")
		return
	}
	ctx := c.Request.Context()
	userID, found, err := h.topics.LookupUserForTopic(ctx, topicID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "topic not found")
		return
	}
	t, err := h.topics.Topic(ctx, userID)
	if errors.Is(err, services.ErrNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "topic not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, t)
}
