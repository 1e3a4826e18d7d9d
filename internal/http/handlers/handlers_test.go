package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/http/middleware"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// ---------- test DB + app ----------

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:notif_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Notification{},
		&domain.NotificationSetting{},
		&domain.NotificationTemplate{},
		&domain.Sequence{},
		&domain.Idempotency{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type pushRecorder struct {
	mu    sync.Mutex
	sends []int64
}

func (p *pushRecorder) Send(memberID int64, _ string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, memberID)
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

// stubStream writes one event and returns. Members in live count as
// connected for Disconnect.
type stubStream struct {
	member int64
	live   map[int64]bool
}

func (s *stubStream) Disconnect(memberID int64) bool {
	was := s.live[memberID]
	delete(s.live, memberID)
	return was
}

func (s *stubStream) Serve(_ context.Context, memberID int64, w http.ResponseWriter) {
	s.member = memberID
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("event:connect\ndata:connected\n\n"))
}

type testApp struct {
	r      *gin.Engine
	notifs *services.NotificationService
	push   *pushRecorder
	stream *stubStream
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)

	push := &pushRecorder{}
	stream := &stubStream{}
	notifs := services.NewNotificationService(db, 0)
	idem := &services.IdempotencyService{DB: db, TTL: time.Hour}

	h := New(Deps{
		Notifications: notifs,
		Settings:      &services.SettingService{DB: db},
		Templates:     services.NewTemplateService(db),
		Admin:         &services.AdminService{DB: db, Pusher: push},
		Idempotency:   idem,
		Stream:        stream,
	})

	r := gin.New()
	member := r.Group("/api/notifications", middleware.MemberAuth())
	member.GET("", h.ListRecent)
	member.GET("/unread-count", h.UnreadCount)
	member.GET("/settings", h.GetSettings)
	member.PATCH("/settings", h.UpdateSetting)
	member.GET("/stream", h.Stream)
	member.POST("/read", h.MarkRead)
	member.GET("/:id", h.GetNotification)
	member.DELETE("/:id", h.DeleteNotification)

	lookup := func(ctx context.Context, memberID int64, scope, key string, _ time.Time) (bool, error) {
		rec, err := idem.Lookup(ctx, memberID, scope, key)
		return rec != nil, err
	}
	admin := r.Group("/api/notifications",
		middleware.MemberAuth(),
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup),
	)
	admin.POST("/templates", h.CreateTemplate)
	admin.GET("/templates", h.ListTemplates)
	admin.PATCH("/templates/:id", h.UpdateTemplate)
	admin.DELETE("/templates/:id", h.DeleteTemplate)
	admin.POST("/resend/:id", h.Resend)
	admin.GET("/search", h.Search)
	admin.DELETE("/stream/:memberId", h.DisconnectStream)

	return &testApp{r: r, notifs: notifs, push: push, stream: stream}
}

func (a *testApp) do(method, path, member string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if member != "" {
		req.Header.Set(middleware.HeaderMemberID, member)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *testApp) admin(method, path string, body any, extra map[string]string) *httptest.ResponseRecorder {
	hdr := map[string]string{middleware.HeaderMemberRole: middleware.RoleAdmin}
	for k, v := range extra {
		hdr[k] = v
	}
	return a.do(method, path, "1", body, hdr)
}

func (a *testApp) seed(t *testing.T, member int64, msg string) *domain.Notification {
	t.Helper()
	n, err := a.notifs.Create(context.Background(), member, domain.CategoryOrder, msg, "trace")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return n
}

// decodeData unmarshals the envelope's data field into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	if !env.Success {
		t.Fatalf("success=false: %s", w.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return er.Code
}
