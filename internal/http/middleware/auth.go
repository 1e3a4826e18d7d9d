// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling member from gateway-supplied headers. The
// API sits behind a gateway that authenticates the user and forwards:
//
//   - X-Member-ID:   numeric member id (required on member and admin routes)
//   - X-Member-Role: role name; admin routes require ROLE_ADMIN
//
// MemberAuth rejects requests without a valid member id with 401, and
// RequireRole rejects members lacking the role with 403. Both respond with
// the standard {request_id, code, message} error body.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers set by the gateway.
const (
	HeaderMemberID   = "X-Member-ID"
	HeaderMemberRole = "X-Member-Role"
)

// RoleAdmin is required on admin routes.
const RoleAdmin = "ROLE_ADMIN"

const (
	ctxKeyMemberID   = "memberID"
	ctxKeyMemberRole = "memberRole"
)

// MemberAuth parses X-Member-ID and stores the member id and role in the Gin
// context.
func MemberAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseMemberID(c.GetHeader(HeaderMemberID))
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing or invalid "+HeaderMemberID+" header")
			return
		}
		c.Set(ctxKeyMemberID, id)
		c.Set(ctxKeyMemberRole, strings.TrimSpace(c.GetHeader(HeaderMemberRole)))
		c.Next()
	}
}

// RequireRole allows only members whose role equals role. It must run after
// MemberAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if MemberRole(c) != role {
			abortJSON(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// MemberID returns the member id stored by MemberAuth.
func MemberID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxKeyMemberID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// MemberRole returns the role stored by MemberAuth, or "".
func MemberRole(c *gin.Context) string {
	v, _ := c.Get(ctxKeyMemberRole)
	s, _ := v.(string)
	return s
}

// ParseMemberID parses a positive decimal member id.
func ParseMemberID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// abortJSON writes the standard error body without importing handlers.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
