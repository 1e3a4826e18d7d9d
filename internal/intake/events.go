package intake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// Upstream topics.
const (
	TopicPaymentCompleted  = "payment.completed"
	TopicPaymentFailed     = "payment.failed"
	TopicPointChanged      = "point.changed"
	TopicDeliveryStarted   = "delivery.started"
	TopicDeliveryCompleted = "delivery.completed"
)

// Topics lists every topic the intake consumes.
var Topics = []string{
	TopicPaymentCompleted,
	TopicPaymentFailed,
	TopicPointChanged,
	TopicDeliveryStarted,
	TopicDeliveryCompleted,
}

// PaymentCompletedEvent is published when an order's payment succeeds.
type PaymentCompletedEvent struct {
	OrderID    int64  `json:"orderId"`
	PaymentID  int64  `json:"paymentId"`
	PaidAmount int64  `json:"paidAmount"`
	Method     string `json:"method"`
	Timestamp  string `json:"timestamp"`
	TraceID    string `json:"traceId"`
}

// PaymentFailedEvent is published when an order's payment fails.
type PaymentFailedEvent struct {
	OrderID   int64  `json:"orderId"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"traceId"`
}

// PointChangedEvent is published by the point ledger. OrderID is optional.
type PointChangedEvent struct {
	MemberID      int64       `json:"memberId"`
	OrderID       *int64      `json:"orderId,omitempty"`
	ChangeType    string      `json:"changeType"`
	Amount        json.Number `json:"amount"`
	Reason        string      `json:"reason"`
	TransactionID string      `json:"transactionId"`
	Timestamp     string      `json:"timestamp"`
	TraceID       string      `json:"traceId"`
	SourceService string      `json:"sourceService"`
}

// DeliveryStartedEvent is published when a shipment leaves the warehouse.
// StartedAt is kept raw; upstream encodes it without a zone.
type DeliveryStartedEvent struct {
	OrderID        int64           `json:"orderId"`
	DeliveryID     int64           `json:"deliveryId"`
	TrackingNumber string          `json:"trackingNumber"`
	Company        string          `json:"company"`
	StartedAt      json.RawMessage `json:"startedAt,omitempty"`
	TraceID        string          `json:"traceId"`
}

// DeliveryCompletedEvent is published when a shipment is delivered.
type DeliveryCompletedEvent struct {
	OrderID     int64           `json:"orderId"`
	DeliveryID  int64           `json:"deliveryId"`
	CompletedAt json.RawMessage `json:"completedAt,omitempty"`
	TraceID     string          `json:"traceId"`
}

// notice is a decoded event reduced to what the controller needs.
type notice struct {
	category domain.Category
	// orderID is set when the owner must be looked up.
	orderID int64
	// memberID is set when the event names its owner directly.
	memberID  int64
	templated bool
	vars      map[string]string
	fallback  string
	traceID   string
}

// decodeNotice parses payload according to topic.
func decodeNotice(topic string, payload []byte) (notice, error) {
	switch topic {
	case TopicPaymentCompleted:
		var ev PaymentCompletedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return notice{}, malformed(topic, err)
		}
		orderID := strconv.FormatInt(ev.OrderID, 10)
		amount := strconv.FormatInt(ev.PaidAmount, 10)
		return notice{
			category:  domain.CategoryOrder,
			orderID:   ev.OrderID,
			templated: true,
			vars:      map[string]string{services.VarOrderID: orderID, services.VarAmount: amount},
			fallback:  "주문번호 " + orderID + "에 대한 결제가 완료되었습니다. 금액: " + amount + "원",
			traceID:   ev.TraceID,
		}, nil

	case TopicPaymentFailed:
		var ev PaymentFailedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return notice{}, malformed(topic, err)
		}
		return notice{
			category: domain.CategoryOrder,
			orderID:  ev.OrderID,
			fallback: "결제가 실패하였습니다: " + ev.Reason,
			traceID:  ev.TraceID,
		}, nil

	case TopicPointChanged:
		var ev PointChangedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return notice{}, malformed(topic, err)
		}
		return notice{
			category: domain.CategoryPoint,
			memberID: ev.MemberID,
			fallback: pointMessage(ev.ChangeType, ev.Amount.String()),
			traceID:  ev.TraceID,
		}, nil

	case TopicDeliveryStarted:
		var ev DeliveryStartedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return notice{}, malformed(topic, err)
		}
		return notice{
			category:  domain.CategoryDelivery,
			orderID:   ev.OrderID,
			templated: true,
			vars: map[string]string{
				services.VarOrderID:        strconv.FormatInt(ev.OrderID, 10),
				services.VarTrackingNumber: ev.TrackingNumber,
			},
			fallback: "배송이 시작되었습니다. 운송장: " + ev.TrackingNumber,
			traceID:  ev.TraceID,
		}, nil

	case TopicDeliveryCompleted:
		var ev DeliveryCompletedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return notice{}, malformed(topic, err)
		}
		return notice{
			category:  domain.CategoryDelivery,
			orderID:   ev.OrderID,
			templated: true,
			vars:      map[string]string{services.VarOrderID: strconv.FormatInt(ev.OrderID, 10)},
			fallback:  "배송이 완료되었습니다. 감사합니다.",
			traceID:   ev.TraceID,
		}, nil
	}
	return notice{}, Permanent(fmt.Errorf("%w: unknown topic %q", ErrMalformedEvent, topic))
}

func pointMessage(changeType, amount string) string {
	switch strings.ToUpper(strings.TrimSpace(changeType)) {
	case "SAVE":
		return "포인트가 " + amount + "원 적립되었습니다."
	case "USE":
		return "포인트가 " + amount + "원 사용되었습니다."
	case "CANCEL":
		return "포인트가 " + amount + "원 적립 취소되었습니다."
	}
	return "포인트 변경 알림 - " + amount + "원"
}

func malformed(topic string, err error) error {
	return Permanent(fmt.Errorf("%w: %s: %v", ErrMalformedEvent, topic, err))
}
