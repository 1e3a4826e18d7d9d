package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/tbourn/go-notification-backend/internal/services"
)

func TestListRecent_EnvelopeAndETag(t *testing.T) {
	a := newTestApp(t)
	a.seed(t, 42, "first")
	a.seed(t, 42, "second")
	a.seed(t, 7, "other member")

	w := a.do(http.MethodGet, "/api/notifications", "42", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var items []services.NotificationResponse
	decodeData(t, w, &items)
	if len(items) != 2 || items[0].Message != "second" || items[1].Message != "first" {
		t.Fatalf("unexpected items: %+v", items)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w = a.do(http.MethodGet, "/api/notifications", "42", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// Marking read changes the unread count and therefore the tag.
	w = a.do(http.MethodPost, "/api/notifications/read", "42", MarkReadRequest{IDs: []int64{items[0].ID}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read status=%d", w.Code)
	}
	w = a.do(http.MethodGet, "/api/notifications", "42", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("expected fresh 200 with new ETag, got %d %q", w.Code, w.Header().Get("ETag"))
	}
}

func TestListRecent_RequiresMember(t *testing.T) {
	a := newTestApp(t)
	w := a.do(http.MethodGet, "/api/notifications", "", nil, nil)
	if w.Code != http.StatusUnauthorized || errCode(t, w) != ErrCodeUnauthorized {
		t.Fatalf("expected 401 unauthorized, got %d %s", w.Code, w.Body.String())
	}
}

func TestUnreadCount_And_MarkRead(t *testing.T) {
	a := newTestApp(t)
	n1 := a.seed(t, 42, "a")
	n2 := a.seed(t, 42, "b")
	foreign := a.seed(t, 7, "c")

	var cnt UnreadCountResponse
	decodeData(t, a.do(http.MethodGet, "/api/notifications/unread-count", "42", nil, nil), &cnt)
	if cnt.Count != 2 {
		t.Fatalf("unread=%d want 2", cnt.Count)
	}

	// Foreign ids are ignored.
	var mr MarkReadResponse
	w := a.do(http.MethodPost, "/api/notifications/read", "42", MarkReadRequest{IDs: []int64{n1.ID, foreign.ID}}, nil)
	decodeData(t, w, &mr)
	if mr.Updated != 1 {
		t.Fatalf("updated=%d want 1", mr.Updated)
	}

	// Re-marking is a no-op.
	decodeData(t, a.do(http.MethodPost, "/api/notifications/read", "42", MarkReadRequest{IDs: []int64{n1.ID, n2.ID}}, nil), &mr)
	if mr.Updated != 1 {
		t.Fatalf("updated=%d want 1", mr.Updated)
	}
	decodeData(t, a.do(http.MethodGet, "/api/notifications/unread-count", "42", nil, nil), &cnt)
	if cnt.Count != 0 {
		t.Fatalf("unread=%d want 0", cnt.Count)
	}

	w = a.do(http.MethodPost, "/api/notifications/read", "42", MarkReadRequest{}, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeEmptyIDs {
		t.Fatalf("empty ids: got %d %s", w.Code, w.Body.String())
	}
}

func TestGetAndDeleteNotification(t *testing.T) {
	a := newTestApp(t)
	n := a.seed(t, 42, "hello")
	path := "/api/notifications/" + strconv.FormatInt(n.ID, 10)

	var got services.NotificationResponse
	decodeData(t, a.do(http.MethodGet, path, "42", nil, nil), &got)
	if got.ID != n.ID || got.Status != "UNREAD" || got.Type != "ORDER" {
		t.Fatalf("unexpected notification: %+v", got)
	}

	if w := a.do(http.MethodGet, path, "7", nil, nil); w.Code != http.StatusForbidden || errCode(t, w) != ErrCodeWrongOwner {
		t.Fatalf("foreign get: %d %s", w.Code, w.Body.String())
	}
	if w := a.do(http.MethodDelete, path, "7", nil, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: %d", w.Code)
	}
	if w := a.do(http.MethodGet, "/api/notifications/abc", "42", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}

	if w := a.do(http.MethodDelete, path, "42", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if w := a.do(http.MethodGet, path, "42", nil, nil); w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotificationNotFound {
		t.Fatalf("after delete: %d %s", w.Code, w.Body.String())
	}
}

func TestSettings_DefaultsAndToggle(t *testing.T) {
	a := newTestApp(t)

	var s services.SettingResponse
	decodeData(t, a.do(http.MethodGet, "/api/notifications/settings", "42", nil, nil), &s)
	if !s.OrderEnabled || !s.DeliveryEnabled || !s.PointEnabled || !s.SystemEnabled {
		t.Fatalf("defaults must be all enabled: %+v", s)
	}

	off := false
	w := a.do(http.MethodPatch, "/api/notifications/settings", "42", UpdateSettingRequest{Type: "point", Enabled: &off}, nil)
	decodeData(t, w, &s)
	if s.PointEnabled || !s.OrderEnabled {
		t.Fatalf("unexpected settings: %+v", s)
	}

	w = a.do(http.MethodPatch, "/api/notifications/settings", "42", UpdateSettingRequest{Type: "EMAIL", Enabled: &off}, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidInput {
		t.Fatalf("unknown type: %d %s", w.Code, w.Body.String())
	}
	w = a.do(http.MethodPatch, "/api/notifications/settings", "42", map[string]string{"type": "ORDER"}, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeBadRequest {
		t.Fatalf("missing enabled: %d %s", w.Code, w.Body.String())
	}
}

func TestStream_DelegatesToServer(t *testing.T) {
	a := newTestApp(t)
	w := a.do(http.MethodGet, "/api/notifications/stream", "42", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected response: %d %v", w.Code, w.Header())
	}
	if a.stream.member != 42 {
		t.Fatalf("stream served for member %d", a.stream.member)
	}
}
