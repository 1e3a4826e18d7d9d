package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// UpdateSettingRequest toggles delivery of one category.
type UpdateSettingRequest struct {
	Type    string `json:"type"    binding:"required" example:"POINT"`
	Enabled *bool  `json:"enabled" binding:"required" example:"false"`
}

// GetSettings godoc
// @ID          getSettings
// @Summary     Get delivery settings
// @Description Returns per-category delivery toggles. Members without a stored record get all categories enabled.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Member-ID  header  int  true  "Member ID"  example(42)
//
// @Success     200  {object} handlers.Envelope{data=services.SettingResponse}
// @Failure     401  {object} handlers.ErrorResponse "Missing member"
// @Router      /api/notifications/settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	s, err := h.settingSvc.Get(c.Request.Context(), member)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSetting godoc
// @ID          updateSetting
// @Summary     Toggle a delivery category
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-Member-ID  header  int                           true  "Member ID"  example(42)
// @Param       body         body    handlers.UpdateSettingRequest true  "Category toggle"
//
// @Success     200  {object} handlers.Envelope{data=services.SettingResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad request or unknown type"
// @Router      /api/notifications/settings [patch]
func (h *Handlers) UpdateSetting(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type and enabled are required")
		return
	}
	cat, valid := domain.ParseCategory(req.Type)
	if !valid {
		writeServiceError(c, services.ErrInvalidCategory)
		return
	}

	ctx := c.Request.Context()
	if err := h.settingSvc.Update(ctx, member, cat, *req.Enabled); err != nil {
		writeServiceError(c, err)
		return
	}
	s, err := h.settingSvc.Get(ctx, member)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}
