package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/utils"
)

// DisconnectResponse reports whether a live stream was closed.
type DisconnectResponse struct {
	Disconnected bool `json:"disconnected" example:"true"`
}

// Stream godoc
// @ID          streamNotifications
// @Summary     Subscribe to live notifications
// @Description Opens a Server-Sent Events stream. The first event is `connect`; each new notification arrives as a `notification` event. A newer connection for the same member replaces this one.
// @Tags        Notifications
// @Produce     text/event-stream
//
// @Param       X-Member-ID  header  int  true  "Member ID"  example(42)
//
// @Success     200  {string} string "event stream"
// @Failure     401  {object} handlers.ErrorResponse "Missing member"
// @Router      /api/notifications/stream [get]
func (h *Handlers) Stream(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	h.stream.Serve(c.Request.Context(), member, c.Writer)
}

// DisconnectStream godoc
// @ID          disconnectStream
// @Summary     Close a member's live stream
// @Description Force-closes the member's current event stream, if any. The client may reconnect.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Member-ID    header  int     true  "Member ID"          example(1)
// @Param       X-Member-Role  header  string  true  "Member role"        example(ROLE_ADMIN)
// @Param       memberId       path    int     true  "Member to disconnect" example(42)
//
// @Success     200  {object} handlers.Envelope{data=handlers.DisconnectResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad member id"
// @Failure     403  {object} handlers.ErrorResponse "Not an operator"
// @Router      /api/notifications/stream/{memberId} [delete]
func (h *Handlers) DisconnectStream(c *gin.Context) {
	target, valid := utils.ParseID(c.Param("memberId"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member id must be a positive integer")
		return
	}
	ok(c, http.StatusOK, DisconnectResponse{Disconnected: h.stream.Disconnect(target)})
}
