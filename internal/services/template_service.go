// Package services – TemplateRenderer and TemplateService
//
// TemplateRenderer turns an event's variables into message text using the
// operator-authored template for the category, falling back to a built-in
// message whenever no usable template exists. Rendering never fails: a lookup
// error is logged and the fallback is used, so a template problem can never
// block delivery.
//
// TemplateService is the operator surface for template CRUD. Bodies are
// NFC-normalized and must carry the placeholders their category renders.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/repo"
)

// Placeholder names filled in by the intake controller.
const (
	VarOrderID        = "orderId"
	VarAmount         = "amount"
	VarTrackingNumber = "trackingNumber"
)

// requiredPlaceholders lists, per category, the placeholders a template body
// must contain to be accepted.
var requiredPlaceholders = map[domain.Category][]string{
	domain.CategoryOrder:    {VarOrderID, VarAmount},
	domain.CategoryPoint:    {VarOrderID, VarAmount},
	domain.CategoryDelivery: {VarOrderID},
	domain.CategorySystem:   nil,
}

// RenderTemplate substitutes {key} with vars[key] for every key in vars.
// Placeholders without a matching key are left as-is. Substitution is a single
// pass, so values containing braces are never expanded again.
func RenderTemplate(body string, vars map[string]string) string {
	if len(vars) == 0 || body == "" {
		return body
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	// Longest key first so "{a}" never shadows "{ab}" at the same offset.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

// TemplateRenderer renders message text from stored templates.
type TemplateRenderer struct {
	DB *gorm.DB
}

// Render returns the category's template with vars substituted, or fallback
// when the category has no template or the lookup fails. If several templates
// exist for the category the oldest one is used.
func (r *TemplateRenderer) Render(ctx context.Context, c domain.Category, vars map[string]string, fallback string) string {
	tr := otel.Tracer("services/TemplateRenderer")
	ctx, span := tr.Start(ctx, "Render", trace.WithAttributes(attribute.String("type", string(c))))
	defer span.End()

	tpls, err := repo.FindTemplatesByType(ctx, r.DB, c)
	if err != nil {
		log.Warn().Err(err).Str("type", string(c)).Msg("template lookup failed; using fallback message")
		span.SetAttributes(attribute.Bool("template.fallback", true))
		return fallback
	}
	if len(tpls) == 0 {
		span.SetAttributes(attribute.Bool("template.fallback", true))
		return fallback
	}
	if len(tpls) > 1 {
		log.Warn().Str("type", string(c)).Int("count", len(tpls)).Int64("template_id", tpls[0].ID).
			Msg("multiple templates for type; using oldest")
	}
	span.SetAttributes(attribute.Int64("template.id", tpls[0].ID))
	return RenderTemplate(tpls[0].Message, vars)
}

// TemplateInput is the operator payload for creating or updating a template.
type TemplateInput struct {
	Type    string `json:"type"    example:"ORDER"`
	Title   string `json:"title"   example:"결제 완료"`
	Message string `json:"message" example:"주문 {orderId} 결제 {amount}원 완료"`
}

// TemplateResponse is the wire shape of a stored template.
type TemplateResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func toTemplateResponse(t *domain.NotificationTemplate) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Type:      string(t.Type),
		Title:     t.Title,
		Message:   t.Message,
		CreatedAt: t.CreatedAt,
	}
}

// TemplateService implements operator CRUD over templates.
type TemplateService struct {
	DB  *gorm.DB
	IDs IDAllocator
}

// NewTemplateService wires a TemplateService backed by the sequences table.
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{DB: db, IDs: &SequenceAllocator{DB: db}}
}

// Create stores a new template. A category may hold only one template.
func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (TemplateResponse, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("type", in.Type)))
	defer span.End()

	c, title, body, err := validateTemplate(in.Type, in.Title, in.Message)
	if err != nil {
		return TemplateResponse{}, err
	}

	// Two racing creates can both pass this check; Render tolerates the
	// duplicate by using the oldest template.
	existing, err := repo.FindTemplatesByType(ctx, s.DB, c)
	if err != nil {
		return TemplateResponse{}, err
	}
	if len(existing) > 0 {
		return TemplateResponse{}, ErrTemplateExists
	}
	id, err := s.IDs.Next(ctx, domain.TemplateSequence)
	if err != nil {
		return TemplateResponse{}, fmt.Errorf("allocate template id: %w", err)
	}
	out := &domain.NotificationTemplate{ID: id, Type: c, Title: title, Message: body}
	if err := repo.CreateTemplate(ctx, s.DB, out); err != nil {
		return TemplateResponse{}, err
	}
	return toTemplateResponse(out), nil
}

// Update replaces title and body of template id. The category is fixed at
// creation; in.Type is ignored.
func (s *TemplateService) Update(ctx context.Context, id int64, in TemplateInput) (TemplateResponse, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.Int64("template.id", id)))
	defer span.End()

	cur, err := repo.GetTemplate(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TemplateResponse{}, ErrTemplateNotFound
		}
		return TemplateResponse{}, err
	}
	_, title, body, err := validateTemplate(string(cur.Type), in.Title, in.Message)
	if err != nil {
		return TemplateResponse{}, err
	}
	if err := repo.UpdateTemplate(ctx, s.DB, id, title, body); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TemplateResponse{}, ErrTemplateNotFound
		}
		return TemplateResponse{}, err
	}
	cur.Title, cur.Message = title, body
	return toTemplateResponse(cur), nil
}

// Get returns template id.
func (s *TemplateService) Get(ctx context.Context, id int64) (TemplateResponse, error) {
	t, err := repo.GetTemplate(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TemplateResponse{}, ErrTemplateNotFound
		}
		return TemplateResponse{}, err
	}
	return toTemplateResponse(t), nil
}

// Delete removes template id.
func (s *TemplateService) Delete(ctx context.Context, id int64) error {
	if err := repo.DeleteTemplate(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}

// List returns every template ordered by id.
func (s *TemplateService) List(ctx context.Context) ([]TemplateResponse, error) {
	tpls, err := repo.ListTemplates(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateResponse, 0, len(tpls))
	for i := range tpls {
		out = append(out, toTemplateResponse(&tpls[i]))
	}
	return out, nil
}

// validateTemplate parses the category and normalizes and checks title and body.
func validateTemplate(rawType, title, body string) (domain.Category, string, string, error) {
	c, ok := domain.ParseCategory(rawType)
	if !ok {
		return "", "", "", ErrInvalidCategory
	}
	title = strings.TrimSpace(norm.NFC.String(title))
	body = strings.TrimSpace(norm.NFC.String(body))
	if title == "" || body == "" {
		return "", "", "", fmt.Errorf("%w: title and message are required", ErrInvalidTemplate)
	}
	for _, p := range requiredPlaceholders[c] {
		if !strings.Contains(body, "{"+p+"}") {
			return "", "", "", fmt.Errorf("%w: %s template must contain {%s}", ErrInvalidTemplate, c, p)
		}
	}
	return c, title, body, nil
}
