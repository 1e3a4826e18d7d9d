// Operator HTTP handlers.
//
// Routes are mounted under /api/notifications behind MemberAuth and
// RequireRole(ROLE_ADMIN):
//   - POST   /templates        (create, idempotent)
//   - PATCH  /templates/{id}   (update)
//   - DELETE /templates/{id}   (delete)
//   - GET    /templates        (list)
//   - POST   /resend/{id}      (re-push, idempotent)
//   - GET    /search           (filter by member, type, status)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// request with the same key and scope exists, the stored resource is returned
// with `Idempotency-Replayed: true` and the operation is not repeated.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/http/middleware"
	"github.com/tbourn/go-notification-backend/internal/services"
	"github.com/tbourn/go-notification-backend/internal/utils"
)

// HeaderIdempotencyReplayed marks a response served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// SearchResponse wraps a page of notifications and pagination information.
type SearchResponse struct {
	Notifications []services.NotificationResponse `json:"notifications"`
	Pagination    Pagination                      `json:"pagination"`
}

// replay serves a stored result for this request when one exists. load
// fetches the resource by the recorded id.
func (h *Handlers) replay(c *gin.Context, load func(ctx context.Context, id int64) (any, error)) bool {
	if h.idem == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	member, _ := middleware.MemberID(c)
	ctx := c.Request.Context()

	rec, err := h.idem.Lookup(ctx, member, middleware.IdempotencyScope(c), key)
	if err != nil || rec == nil {
		return false
	}
	body, err := load(ctx, rec.ResourceID)
	if err != nil {
		return false
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	ok(c, rec.Status, body)
	return true
}

// remember records a successful result for later replay. Best effort.
func (h *Handlers) remember(c *gin.Context, resourceID int64, status int) {
	if h.idem == nil {
		return
	}
	key, has := middleware.GetIdempotencyKey(c)
	if !has {
		return
	}
	member, _ := middleware.MemberID(c)
	if err := h.idem.Remember(c.Request.Context(), member, middleware.IdempotencyScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
	}
}

// CreateTemplate godoc
// @ID          createTemplate
// @Summary     Create a template
// @Description Registers a message template for a category. Supports idempotency via the Idempotency-Key header.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Member-ID      header  int     true   "Member ID"                             example(1)
// @Param       X-Member-Role    header  string  true   "Member role"                           example(ROLE_ADMIN)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"      example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    services.TemplateInput  true  "Template"
//
// @Success     201  {object} handlers.Envelope{data=services.TemplateResponse}
// @Header      201  {string} Idempotency-Replayed "true when served from a stored result"
// @Failure     400  {object} handlers.ErrorResponse "Invalid template"
// @Failure     403  {object} handlers.ErrorResponse "Not an operator"
// @Failure     409  {object} handlers.ErrorResponse "Template exists for type"
// @Router      /api/notifications/templates [post]
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var in services.TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.replay(c, func(ctx context.Context, id int64) (any, error) { return h.tplSvc.Get(ctx, id) }) {
		return
	}

	t, err := h.tplSvc.Create(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.remember(c, t.ID, http.StatusCreated)
	ok(c, http.StatusCreated, t)
}

// UpdateTemplate godoc
// @ID          updateTemplate
// @Summary     Update a template
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Member-ID    header  int     true  "Member ID"    example(1)
// @Param       X-Member-Role  header  string  true  "Member role"  example(ROLE_ADMIN)
// @Param       id             path    int     true  "Template ID"  example(3)
// @Param       body           body    services.TemplateInput  true  "Template"
//
// @Success     200  {object} handlers.Envelope{data=services.TemplateResponse}
// @Failure     400  {object} handlers.ErrorResponse "Invalid template"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /api/notifications/templates/{id} [patch]
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "template id must be a positive integer")
		return
	}
	var in services.TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.tplSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTemplate godoc
// @ID          deleteTemplate
// @Summary     Delete a template
// @Tags        Admin
//
// @Param       X-Member-ID    header  int     true  "Member ID"    example(1)
// @Param       X-Member-Role  header  string  true  "Member role"  example(ROLE_ADMIN)
// @Param       id             path    int     true  "Template ID"  example(3)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /api/notifications/templates/{id} [delete]
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "template id must be a positive integer")
		return
	}
	if err := h.tplSvc.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List templates
// @Tags        Admin
// @Produce     json
//
// @Param       X-Member-ID    header  int     true  "Member ID"    example(1)
// @Param       X-Member-Role  header  string  true  "Member role"  example(ROLE_ADMIN)
//
// @Success     200  {object} handlers.Envelope{data=[]services.TemplateResponse}
// @Router      /api/notifications/templates [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	items, err := h.tplSvc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// Resend godoc
// @ID          resendNotification
// @Summary     Re-push a stored notification
// @Description Pushes the notification to the owner's live stream again, if connected. Supports idempotency via the Idempotency-Key header.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Member-ID      header  int     true   "Member ID"                         example(1)
// @Param       X-Member-Role    header  string  true   "Member role"                       example(ROLE_ADMIN)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(resend-101-1)
// @Param       id               path    int     true   "Notification ID"                   example(101)
//
// @Success     200  {object} handlers.Envelope{data=services.NotificationResponse}
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /api/notifications/resend/{id} [post]
func (h *Handlers) Resend(c *gin.Context) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a positive integer")
		return
	}
	if h.replay(c, func(ctx context.Context, rid int64) (any, error) { return h.adminSvc.Get(ctx, rid) }) {
		return
	}

	n, err := h.adminSvc.Resend(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.remember(c, n.ID, http.StatusOK)
	ok(c, http.StatusOK, n)
}

// Search godoc
// @ID          searchNotifications
// @Summary     Search notifications
// @Description Returns a page of notifications filtered by member, type and status, newest first.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Member-ID    header  int     true   "Member ID"       example(1)
// @Param       X-Member-Role  header  string  true   "Member role"     example(ROLE_ADMIN)
// @Param       memberId       query   int     false  "Owner filter"    example(42)
// @Param       type           query   string  false  "Category filter" Enums(ORDER, DELIVERY, POINT, SYSTEM)
// @Param       status         query   string  false  "Status filter"   Enums(UNREAD, READ)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.Envelope{data=handlers.SearchResponse}
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Router      /api/notifications/search [get]
func (h *Handlers) Search(c *gin.Context) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	var f services.SearchFilter
	if raw := c.Query("memberId"); raw != "" {
		id, valid := utils.ParseID(raw)
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "memberId must be a positive integer")
			return
		}
		f.MemberID = id
	}
	f.Type = c.Query("type")
	f.Status = c.Query("status")

	page, pageSize := utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)

	items, total, err := h.adminSvc.Search(c.Request.Context(), f, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if items == nil {
		items = []services.NotificationResponse{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, SearchResponse{
		Notifications: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
