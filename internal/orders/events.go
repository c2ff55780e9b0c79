package orders

import (
	"encoding/json"
	"time"
)

const (
	EventPaymentApproved = "PaymentApproved"
	EventPaymentDeclined = "PaymentDeclined"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// PaymentSettledPayload is published after every settlement attempt,
// approved or declined. Reference is the processor-facing id of the attempt.
type PaymentSettledPayload struct {
	OrderID     string `json:"order_id"`
	Reference   string `json:"reference"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      Status `json:"status"`
}
