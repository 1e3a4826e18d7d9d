// Package domain defines the persistence models for notifications, per-member
// delivery settings, message templates and named sequences. These types are
// mapped with GORM and shared across the repository, service and intake layers.
package domain

import (
	"strings"
	"time"
)

// Category classifies both notifications and preference toggles. The set is
// closed: ORDER, DELIVERY, POINT and SYSTEM.
type Category string

const (
	CategoryOrder    Category = "ORDER"
	CategoryDelivery Category = "DELIVERY"
	CategoryPoint    Category = "POINT"
	CategorySystem   Category = "SYSTEM"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryOrder, CategoryDelivery, CategoryPoint, CategorySystem}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := settingFields[c]
	return ok
}

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Status is the read state of a notification.
type Status string

const (
	StatusUnread Status = "UNREAD"
	StatusRead   Status = "READ"
)

// ParseStatus converts a case-insensitive name into a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st == StatusUnread || st == StatusRead
}

// Notification is a durable, per-member message created from an upstream
// event (or by an operator).
//
// Fields:
//   - ID: allocated from the "notifications_sequence" counter, never by the
//     storage engine.
//   - MemberID: owning member; indexed together with CreatedAt for the
//     "recent" query and with Status for unread counts.
//   - Type: notification category.
//   - Message: rendered text.
//   - Status: UNREAD on creation, READ after the owner marks it.
//   - TraceID: correlation token copied from the triggering event.
//   - CreatedAt: creation time (UTC).
type Notification struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	MemberID  int64     `json:"member_id"  gorm:"not null;index:idx_member_created,priority:1;index:idx_member_status,priority:1"`
	Type      Category  `json:"type"       gorm:"type:varchar(16);not null"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Status    Status    `json:"status"     gorm:"type:varchar(16);not null;default:'UNREAD';index:idx_member_status,priority:2"`
	TraceID   string    `json:"trace_id"   gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_member_created,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// MarkRead transitions the notification to READ. Calling it on a READ
// notification leaves it unchanged.
func (n *Notification) MarkRead() {
	n.Status = StatusRead
}

// NotificationSetting stores one member's per-category delivery toggles.
// A missing row means every category is enabled.
type NotificationSetting struct {
	MemberID        int64 `json:"member_id"        gorm:"primaryKey;autoIncrement:false"`
	OrderEnabled    bool  `json:"order_enabled"    gorm:"not null"`
	DeliveryEnabled bool  `json:"delivery_enabled" gorm:"not null"`
	PointEnabled    bool  `json:"point_enabled"    gorm:"not null"`
	SystemEnabled   bool  `json:"system_enabled"   gorm:"not null"`
}

// TableName returns the database table name for NotificationSetting.
func (NotificationSetting) TableName() string { return "notification_settings" }

// settingFields maps each category to the toggle it controls.
var settingFields = map[Category]func(*NotificationSetting) *bool{
	CategoryOrder:    func(s *NotificationSetting) *bool { return &s.OrderEnabled },
	CategoryDelivery: func(s *NotificationSetting) *bool { return &s.DeliveryEnabled },
	CategoryPoint:    func(s *NotificationSetting) *bool { return &s.PointEnabled },
	CategorySystem:   func(s *NotificationSetting) *bool { return &s.SystemEnabled },
}

// DefaultSetting returns the all-enabled setting for memberID.
func DefaultSetting(memberID int64) NotificationSetting {
	return NotificationSetting{
		MemberID:        memberID,
		OrderEnabled:    true,
		DeliveryEnabled: true,
		PointEnabled:    true,
		SystemEnabled:   true,
	}
}

// Enabled reports the toggle for c. Unknown categories are reported enabled.
func (s *NotificationSetting) Enabled(c Category) bool {
	f, ok := settingFields[c]
	if !ok {
		return true
	}
	return *f(s)
}

// Set changes the toggle for c and reports whether c was known.
func (s *NotificationSetting) Set(c Category, enabled bool) bool {
	f, ok := settingFields[c]
	if !ok {
		return false
	}
	*f(s) = enabled
	return true
}

// NotificationTemplate is an operator-authored message body for a category.
// Message may contain {name} placeholders. Uniqueness per category is
// checked by the admin service, not by the schema.
type NotificationTemplate struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	Type      Category  `json:"type"       gorm:"type:varchar(16);not null;index"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for NotificationTemplate.
func (NotificationTemplate) TableName() string { return "notification_templates" }

// Sequence is a named monotonically increasing counter.
type Sequence struct {
	ID  string `gorm:"type:varchar(64);primaryKey"`
	Seq int64  `gorm:"not null;default:0"`
}

// TableName returns the database table name for Sequence.
func (Sequence) TableName() string { return "sequences" }

// Sequence names used by the services.
const (
	NotificationSequence = "notifications_sequence"
	TemplateSequence     = "notification_templates_sequence"
)
