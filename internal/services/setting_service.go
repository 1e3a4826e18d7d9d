// Package services – SettingService
//
// This file implements SettingService, which owns per-member delivery
// preferences. Preferences follow an opt-out model: a member with no stored
// row receives every category, and the row is only written when the member
// reads or changes their settings.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/repo"
)

// SettingResponse is the wire shape of a member's delivery settings.
type SettingResponse struct {
	OrderEnabled    bool `json:"orderEnabled"`
	DeliveryEnabled bool `json:"deliveryEnabled"`
	PointEnabled    bool `json:"pointEnabled"`
	SystemEnabled   bool `json:"systemEnabled"`
}

func toSettingResponse(s *domain.NotificationSetting) SettingResponse {
	return SettingResponse{
		OrderEnabled:    s.OrderEnabled,
		DeliveryEnabled: s.DeliveryEnabled,
		PointEnabled:    s.PointEnabled,
		SystemEnabled:   s.SystemEnabled,
	}
}

// SettingService reads and updates notification settings.
type SettingService struct {
	DB *gorm.DB
}

// IsEnabled reports whether memberID accepts notifications of category c.
// A member without a stored setting accepts everything.
func (s *SettingService) IsEnabled(ctx context.Context, memberID int64, c domain.Category) (bool, error) {
	st, err := repo.GetSetting(ctx, s.DB, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return st.Enabled(c), nil
}

// Get returns memberID's settings, or the all-enabled default when the
// member never changed them. Reading never stores a row.
func (s *SettingService) Get(ctx context.Context, memberID int64) (SettingResponse, error) {
	tr := otel.Tracer("services/SettingService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.Int64("member.id", memberID)))
	defer span.End()

	st, err := repo.GetSetting(ctx, s.DB, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		def := domain.DefaultSetting(memberID)
		return toSettingResponse(&def), nil
	}
	if err != nil {
		return SettingResponse{}, err
	}
	return toSettingResponse(st), nil
}

// Update sets the toggle for category c. Unknown categories yield
// ErrInvalidCategory.
func (s *SettingService) Update(ctx context.Context, memberID int64, c domain.Category, enabled bool) error {
	tr := otel.Tracer("services/SettingService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.String("type", string(c)),
			attribute.Bool("enabled", enabled),
		),
	)
	defer span.End()

	if !c.Valid() {
		return ErrInvalidCategory
	}
	st, err := repo.GetSetting(ctx, s.DB, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		def := domain.DefaultSetting(memberID)
		st, err = &def, nil
	}
	if err != nil {
		return err
	}
	st.Set(c, enabled)
	return repo.SaveSetting(ctx, s.DB, st)
}
