// Member notification HTTP handlers.
//
// This file exposes the member inbox under /api/notifications:
//   - GET    /api/notifications               (recent, ETag support)
//   - GET    /api/notifications/unread-count  (unread count)
//   - GET    /api/notifications/{id}          (single, owner only)
//   - POST   /api/notifications/read          (mark read)
//   - DELETE /api/notifications/{id}          (delete, owner only)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/utils"
)

//
// DTOs
//

// MarkReadRequest is the JSON payload for marking notifications read.
type MarkReadRequest struct {
	IDs []int64 `json:"ids" example:"101,102"`
}

// MarkReadResponse reports how many notifications changed state.
type MarkReadResponse struct {
	Updated int64 `json:"updated" example:"2"`
}

// UnreadCountResponse carries the member's unread count.
type UnreadCountResponse struct {
	Count int64 `json:"count" example:"3"`
}

//
// Handlers
//

// ListRecent godoc
// @ID          listRecentNotifications
// @Summary     List recent notifications
// @Description Returns the member's newest notifications. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Notifications
// @Produce     json
//
// @Param       X-Member-ID    header  int     true   "Member ID"                   example(42)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"notifications:42:3:1:103\")
//
// @Success     200  {object} handlers.Envelope{data=[]services.NotificationResponse}
// @Header      200  {string} ETag  "Weak ETag for current inbox state"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing member"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/notifications [get]
func (h *Handlers) ListRecent(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if st, err := h.notifSvc.Stats(ctx, member); err == nil {
		etag := fmt.Sprintf(`W/"notifications:%d:%d:%d:%d"`, member, st.Count, st.Unread, st.MaxID)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.notifSvc.Recent(ctx, member)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// UnreadCount godoc
// @ID          unreadCount
// @Summary     Count unread notifications
// @Tags        Notifications
// @Produce     json
//
// @Param       X-Member-ID  header  int  true  "Member ID"  example(42)
//
// @Success     200  {object} handlers.Envelope{data=handlers.UnreadCountResponse}
// @Failure     401  {object} handlers.ErrorResponse "Missing member"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/notifications/unread-count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	n, err := h.notifSvc.UnreadCount(c.Request.Context(), member)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Count: n})
}

// GetNotification godoc
// @ID          getNotification
// @Summary     Get a notification
// @Description Returns one notification owned by the member.
// @Tags        Notifications
// @Produce     json
//
// @Param       X-Member-ID  header  int  true  "Member ID"        example(42)
// @Param       id           path    int  true  "Notification ID"  example(101)
//
// @Success     200  {object} handlers.Envelope{data=services.NotificationResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad id"
// @Failure     403  {object} handlers.ErrorResponse "Owned by another member"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /api/notifications/{id} [get]
func (h *Handlers) GetNotification(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a positive integer")
		return
	}
	n, err := h.notifSvc.Get(c.Request.Context(), member, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark notifications read
// @Description Marks the listed notifications read. Ids of other members and already-read ids are ignored.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       X-Member-ID  header  int                      true  "Member ID"  example(42)
// @Param       body         body    handlers.MarkReadRequest true  "Ids to mark"
//
// @Success     200  {object} handlers.Envelope{data=handlers.MarkReadResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad request or empty ids"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/notifications/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	n, err := h.notifSvc.MarkRead(c.Request.Context(), member, req.IDs)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, MarkReadResponse{Updated: n})
}

// DeleteNotification godoc
// @ID          deleteNotification
// @Summary     Delete a notification
// @Tags        Notifications
//
// @Param       X-Member-ID  header  int  true  "Member ID"        example(42)
// @Param       id           path    int  true  "Notification ID"  example(101)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad id"
// @Failure     403  {object} handlers.ErrorResponse "Owned by another member"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /api/notifications/{id} [delete]
func (h *Handlers) DeleteNotification(c *gin.Context) {
	member, okID := memberID(c)
	if !okID {
		return
	}
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a positive integer")
		return
	}
	if err := h.notifSvc.Delete(c.Request.Context(), member, id); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}
