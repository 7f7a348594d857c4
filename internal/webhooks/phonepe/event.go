package phonepewebhook

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
)

// EventKind is the closed set of processor events this service reacts to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventSetupCompleted
	EventSetupFailed
	EventRedemptionCompleted
	EventRedemptionFailed
	EventCancelled
	EventPaused
	EventUnpaused
)

var eventKindsByName = map[string]EventKind{
	"subscription.setup.order.completed":            EventSetupCompleted,
	"subscription.setup.order.failed":               EventSetupFailed,
	"subscription.redemption.order.completed":       EventRedemptionCompleted,
	"subscription.redemption.transaction.completed": EventRedemptionCompleted,
	"subscription.redemption.order.failed":          EventRedemptionFailed,
	"subscription.redemption.transaction.failed":    EventRedemptionFailed,
	"subscription.cancelled":                        EventCancelled,
	"subscription.paused":                           EventPaused,
	"subscription.unpaused":                         EventUnpaused,
}

// ParseEventKind maps an event name to its kind; unrecognized names are EventUnknown.
func ParseEventKind(name string) EventKind {
	if kind, ok := eventKindsByName[strings.TrimSpace(name)]; ok {
		return kind
	}
	return EventUnknown
}

func (k EventKind) String() string {
	switch k {
	case EventSetupCompleted:
		return "setup_completed"
	case EventSetupFailed:
		return "setup_failed"
	case EventRedemptionCompleted:
		return "redemption_completed"
	case EventRedemptionFailed:
		return "redemption_failed"
	case EventCancelled:
		return "cancelled"
	case EventPaused:
		return "paused"
	case EventUnpaused:
		return "unpaused"
	default:
		return "unknown"
	}
}

// Event is a decoded webhook delivery.
type Event struct {
	Name    string    `json:"event"`
	Payload Payload   `json:"payload"`
	Kind    EventKind `json:"-"`
}

type Payload struct {
	MerchantSubscriptionID string          `json:"merchantSubscriptionId"`
	MerchantOrderID        string          `json:"merchantOrderId"`
	State                  string          `json:"state"`
	PaymentFlow            PaymentFlow     `json:"paymentFlow"`
	PaymentDetails         []PaymentDetail `json:"paymentDetails"`
}

type PaymentFlow struct {
	MerchantSubscriptionID string `json:"merchantSubscriptionId"`
}

type PaymentDetail struct {
	TransactionID string `json:"transactionId"`
	State         string `json:"state"`
}

// SubscriptionID prefers the top-level id and falls back to the payment flow.
func (p Payload) SubscriptionID() string {
	if p.MerchantSubscriptionID != "" {
		return p.MerchantSubscriptionID
	}
	return p.PaymentFlow.MerchantSubscriptionID
}

// TransactionID is the first payment detail's transaction id, if any.
func (p Payload) TransactionID() string {
	if len(p.PaymentDetails) == 0 {
		return ""
	}
	return p.PaymentDetails[0].TransactionID
}

// Decode parses a webhook body and classifies its event.
func Decode(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	if strings.TrimSpace(event.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event is required")
	}
	event.Kind = ParseEventKind(event.Name)
	return &event, nil
}
