package core

import "time"

// TelemetryEventType identifies a step in the payment or challenge protocol.
type TelemetryEventType string

const (
	EventChallengeIssued TelemetryEventType = "challenge_issued"
	EventVerifyAttempt   TelemetryEventType = "verify_attempt"
	EventPaymentSettled  TelemetryEventType = "payment_settled"
	EventPaymentRejected TelemetryEventType = "payment_rejected"
)

// TelemetryEvent is one append-only protocol trace record. RequestID
// correlates every event emitted while serving a single HTTP request.
type TelemetryEvent struct {
	RequestID string                 `json:"requestId"`
	EventType TelemetryEventType     `json:"eventType"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
