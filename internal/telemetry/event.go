// Package telemetry defines the service's own operational event stream. These
// events describe the backend's behavior (request outcomes, ingestion
// decisions), not the users' blink data.
package telemetry

import "time"

// Event is one operational telemetry event. Serialized as JSON for the Kafka
// topic and mapped to attributes for the OTel log pipeline.
type Event struct {
	UserID    string    `json:"userId,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
