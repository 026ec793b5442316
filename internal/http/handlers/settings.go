package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forumdesk/internal/settings"
)

// SettingRequest is the body of PUT /settings/:key.
type SettingRequest struct {
	Value *string `json:"value" binding:"required"`
}

// SettingView is a stored setting after normalisation.
type SettingView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ListSettings handles GET /settings. Only explicitly stored keys are
// returned; everything else uses the built-in defaults.
func (h *Handlers) ListSettings(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"settings": all})
}

// PutSetting handles PUT /settings/:key. Invalid values are rejected and the
// previous value stays in force.
func (h *Handlers) PutSetting(c *gin.Context) {
	var req SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `body must be {"value": "..."}`)
		return
	}
	key := c.Param("key")
	stored, err := h.settings.Set(c.Request.Context(), key, *req.Value)
	if errors.Is(err, settings.ErrInvalidSetting) {
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidSetting, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SettingView{Key: key, Value: stored})
}
