package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stats handles GET /stats.
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.reports.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}
