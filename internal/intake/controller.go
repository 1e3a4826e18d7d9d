// Package intake turns upstream domain events into stored notifications.
//
// A Controller handles one event at a time: it resolves the owning member,
// applies the member's delivery settings, renders the message, stores the
// notification and pushes it live. Process wraps that in the retry policy:
// transient failures are retried with a fixed backoff, permanent ones end
// early, and events that still fail are published unchanged to the topic's
// dead-letter queue. A Consumer feeds Process from a Source, one ordered
// worker per partition, and commits each message once Process has decided
// its outcome.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/observability"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// Dead-letter headers added to the original message.
const (
	HeaderException         = "x-exception-message"
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
)

// Outcome is the final disposition of one message.
type Outcome string

const (
	// OutcomeDelivered means a notification was stored.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSuppressed means the member's settings disabled the category.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeDropped means the event was discarded without a notification.
	OutcomeDropped Outcome = "dropped"
	// OutcomeDeadLettered means the event was published to its DLQ.
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeAborted means processing stopped because the context ended; the
	// message must not be acknowledged.
	OutcomeAborted Outcome = "aborted"
)

// Acknowledge reports whether the source message may be committed.
func (o Outcome) Acknowledge() bool { return o != OutcomeAborted }

// OwnerResolver finds the member who placed an order.
type OwnerResolver interface {
	MemberIDByOrderID(ctx context.Context, orderID int64) (int64, error)
}

// PreferenceChecker reports whether a member accepts a category.
type PreferenceChecker interface {
	IsEnabled(ctx context.Context, memberID int64, c domain.Category) (bool, error)
}

// Renderer produces message text from a category's template.
type Renderer interface {
	Render(ctx context.Context, c domain.Category, vars map[string]string, fallback string) string
}

// NotificationCreator stores notifications.
type NotificationCreator interface {
	Create(ctx context.Context, memberID int64, c domain.Category, message, traceID string) (*domain.Notification, error)
}

// Controller processes upstream events.
type Controller struct {
	Owners        OwnerResolver
	Settings      PreferenceChecker
	Templates     Renderer
	Notifications NotificationCreator
	// Push is optional; a nil Push disables live delivery.
	Push services.Pusher

	Policy      RetryPolicy
	DeadLetters DeadLetterSink

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Handle processes a single event once. A nil error means the event is fully
// handled (stored or suppressed) and may be acknowledged.
func (c *Controller) Handle(ctx context.Context, topic string, payload []byte) error {
	_, err := c.handle(ctx, topic, payload)
	return err
}

func (c *Controller) handle(ctx context.Context, topic string, payload []byte) (Outcome, error) {
	n, err := decodeNotice(topic, payload)
	if err != nil {
		return "", err
	}

	owner, err := c.resolveOwner(ctx, n)
	if err != nil {
		return "", err
	}

	enabled, err := c.Settings.IsEnabled(ctx, owner, n.category)
	if err != nil {
		return "", fmt.Errorf("check settings for member %d: %w", owner, err)
	}
	if !enabled {
		log.Info().Str("topic", topic).Int64("member_id", owner).Str("type", string(n.category)).
			Str("trace_id", n.traceID).Msg("notification suppressed by member settings")
		return OutcomeSuppressed, nil
	}

	message := n.fallback
	if n.templated && c.Templates != nil {
		message = c.Templates.Render(ctx, n.category, n.vars, n.fallback)
	}

	stored, err := c.Notifications.Create(ctx, owner, n.category, message, n.traceID)
	if err != nil {
		return "", err
	}

	if c.Push != nil {
		c.Push.Send(owner, services.EventNotification, services.ToNotificationResponse(stored))
	}

	log.Info().Str("topic", topic).Int64("member_id", owner).Int64("notification_id", stored.ID).
		Str("trace_id", n.traceID).Msg("notification delivered")
	return OutcomeDelivered, nil
}

func (c *Controller) resolveOwner(ctx context.Context, n notice) (int64, error) {
	if n.orderID == 0 {
		if n.memberID > 0 {
			return n.memberID, nil
		}
		return 0, Permanent(fmt.Errorf("%w: event carries no member or order", ErrOwnerNotResolved))
	}
	if c.Owners == nil {
		return 0, Permanent(fmt.Errorf("%w: no order lookup configured", ErrOwnerNotResolved))
	}
	owner, err := c.Owners.MemberIDByOrderID(ctx, n.orderID)
	if err != nil {
		return 0, Permanent(fmt.Errorf("%w: order %d: %v", ErrOwnerNotResolved, n.orderID, err))
	}
	if owner <= 0 {
		return 0, Permanent(fmt.Errorf("%w: order %d has no member", ErrOwnerNotResolved, n.orderID))
	}
	return owner, nil
}

// Process applies the retry policy to msg and returns its outcome. Every
// outcome except OutcomeAborted means the message may be acknowledged.
func (c *Controller) Process(ctx context.Context, msg Message) Outcome {
	start := time.Now()
	ctx = observability.ExtractMessage(ctx, msg.headerMap())
	tr := otel.Tracer("intake/Controller")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.partition", msg.Partition),
			attribute.Int64("messaging.offset", msg.Offset),
		),
	)
	defer span.End()

	outcome := c.process(ctx, msg, span)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	eventsTotal.WithLabelValues(msg.Topic, string(outcome)).Inc()
	processingSeconds.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	return outcome
}

func (c *Controller) process(ctx context.Context, msg Message, span trace.Span) Outcome {
	lg := log.With().Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()

	var lastErr error
	max := c.Policy.attempts()
	for attempt := 1; attempt <= max; attempt++ {
		outcome, err := c.handle(ctx, msg.Topic, msg.Value)
		if err == nil {
			attemptsTotal.WithLabelValues(msg.Topic, "ok").Inc()
			return outcome
		}
		if ctx.Err() != nil {
			attemptsTotal.WithLabelValues(msg.Topic, "aborted").Inc()
			return OutcomeAborted
		}
		lastErr = err

		if errors.Is(err, ErrOwnerNotResolved) {
			attemptsTotal.WithLabelValues(msg.Topic, "permanent").Inc()
			lg.Warn().Err(err).Msg("dropping event: owner not resolved")
			return OutcomeDropped
		}
		if IsPermanent(err) {
			attemptsTotal.WithLabelValues(msg.Topic, "permanent").Inc()
			lg.Error().Err(err).Msg("event cannot be processed; dead-lettering")
			break
		}

		attemptsTotal.WithLabelValues(msg.Topic, "error").Inc()
		span.RecordError(err)
		lg.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", max).Msg("event processing failed")
		if attempt < max {
			if err := c.wait(ctx, c.Policy.Backoff); err != nil {
				return OutcomeAborted
			}
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	if c.DeadLetters == nil {
		lg.Error().Err(lastErr).Msg("no dead-letter sink configured; dropping event")
		return OutcomeDropped
	}
	if err := c.deadLetter(ctx, msg, lastErr); err != nil {
		return OutcomeAborted
	}
	lg.Error().Err(lastErr).Str("dlq", c.Policy.DeadLetterTopic(msg.Topic)).Msg("event dead-lettered")
	return OutcomeDeadLettered
}

// deadLetter publishes the original message to its DLQ, retrying until the
// publish succeeds or ctx ends.
func (c *Controller) deadLetter(ctx context.Context, msg Message, cause error) error {
	dl := Message{
		Topic: c.Policy.DeadLetterTopic(msg.Topic),
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now().UTC(),
	}
	carrier := observability.InjectMessage(ctx)
	for _, h := range msg.Headers {
		if _, replaced := carrier[h.Key]; !replaced {
			dl.Headers = append(dl.Headers, h)
		}
	}
	keys := make([]string, 0, len(carrier))
	for k := range carrier {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dl.Headers = append(dl.Headers, Header{Key: k, Value: []byte(carrier[k])})
	}
	dl.Headers = append(dl.Headers,
		Header{Key: HeaderException, Value: []byte(cause.Error())},
		Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)

	for {
		err := c.DeadLetters.Publish(ctx, dl)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Str("dlq", dl.Topic).Int64("offset", msg.Offset).Msg("dead-letter publish failed; retrying")
		if err := c.wait(ctx, c.Policy.Backoff); err != nil {
			return err
		}
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}
