package model

import (
	"fmt"
	"strings"
	"time"
)

// Status represents where an integration event is in its lifecycle.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// ParseStatus normalises s (trimmed, upper-cased) into a Status.
// The result is not validated.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// PayloadFormat is the encoding of an event payload.
type PayloadFormat string

const (
	FormatXML  PayloadFormat = "XML"
	FormatJSON PayloadFormat = "JSON"
)

// String returns the string representation of the payload format.
func (f PayloadFormat) String() string {
	return string(f)
}

// IsValid reports whether f is a known format. The empty format is valid
// and means the payload format is unknown.
func (f PayloadFormat) IsValid() bool {
	switch f {
	case "", FormatXML, FormatJSON:
		return true
	}
	return false
}

// ParsePayloadFormat normalises s (trimmed, upper-cased) into a PayloadFormat.
func ParsePayloadFormat(s string) PayloadFormat {
	return PayloadFormat(strings.ToUpper(strings.TrimSpace(s)))
}

// Event is a record of one integration attempt between the order-processing
// system and its downstream consumer.
type Event struct {
	ID              string              `json:"id,omitempty"`
	OrderID         string              `json:"orderId"`
	Status          Status              `json:"status"`
	Message         string              `json:"message,omitempty"`
	Payload         string              `json:"payload,omitempty"`
	OriginalPayload string              `json:"originalPayload,omitempty"`
	PayloadFormat   PayloadFormat       `json:"payloadFormat,omitempty"`
	ErrorDetails    string              `json:"errorDetails,omitempty"`
	RetryCount      int                 `json:"retryCount"`
	RetryHistory    []RetryHistoryEntry `json:"retryHistory,omitempty"`
	IntegrationName string              `json:"integrationName,omitempty"`
	Version         int64               `json:"version,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.RetryHistory != nil {
		c.RetryHistory = make([]RetryHistoryEntry, len(e.RetryHistory))
		copy(c.RetryHistory, e.RetryHistory)
	}
	return &c
}

// MessageID identifies this state of the event on the bus. Publishing the
// same id and version twice is deduplicated by the broker.
func (e *Event) MessageID() string {
	if e.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s.v%d", e.ID, e.Version)
}

// RetryHistoryEntry records one user-initiated retry of an event.
type RetryHistoryEntry struct {
	RetryNumber int       `json:"retryNumber"`
	Timestamp   time.Time `json:"timestamp"`
	UserNotes   string    `json:"userNotes,omitempty"`
	OldPayload  string    `json:"oldPayload,omitempty"`
	NewPayload  string    `json:"newPayload"`
}

// RetryRequest is the input to a retry: the edited payload for a failed event.
type RetryRequest struct {
	EventID        string        `json:"eventId"`
	UpdatedPayload string        `json:"updatedPayload"`
	PayloadFormat  PayloadFormat `json:"payloadFormat,omitempty"`
	UserNotes      string        `json:"userNotes,omitempty"`
}

// RetryMessage is published to the retry topic after a successful retry.
// It is never stored.
type RetryMessage struct {
	EventID              string        `json:"eventId"`
	OrderID              string        `json:"orderId"`
	OriginalStatus       Status        `json:"originalStatus"`
	UpdatedPayload       string        `json:"updatedPayload"`
	OriginalPayload      string        `json:"originalPayload,omitempty"`
	OriginalErrorDetails string        `json:"originalErrorDetails,omitempty"`
	RetryAttempt         int           `json:"retryAttempt"`
	RetryTimestamp       time.Time     `json:"retryTimestamp"`
	UserNotes            string        `json:"userNotes,omitempty"`
	PayloadFormat        PayloadFormat `json:"payloadFormat,omitempty"`
}

// MessageID identifies this retry notification on the bus.
func (m RetryMessage) MessageID() string {
	if m.EventID == "" {
		return ""
	}
	return fmt.Sprintf("%s.retry%d", m.EventID, m.RetryAttempt)
}
