package model

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// NormalizeEvent trims and upper-cases the enum fields of e in place and
// defaults an empty status to PENDING.
func NormalizeEvent(e *Event) {
	e.OrderID = strings.TrimSpace(e.OrderID)
	e.Status = ParseStatus(string(e.Status))
	if e.Status == "" {
		e.Status = StatusPending
	}
	e.PayloadFormat = ParsePayloadFormat(string(e.PayloadFormat))
	e.IntegrationName = strings.TrimSpace(e.IntegrationName)
}

// ValidateEvent checks an Event for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the event is valid.
func ValidateEvent(e *Event) error {
	var ve ValidationError

	if e.OrderID == "" {
		ve.add("orderId", "is required")
	}
	if !e.Status.IsValid() {
		ve.add("status", fmt.Sprintf("invalid value %q", e.Status))
	}
	if !e.PayloadFormat.IsValid() {
		ve.add("payloadFormat", fmt.Sprintf("invalid value %q", e.PayloadFormat))
	}
	if e.RetryCount < 0 {
		ve.add("retryCount", "must not be negative")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRetryRequest checks a RetryRequest. When a payload format is given
// the updated payload must be well-formed in that format.
func ValidateRetryRequest(r *RetryRequest) error {
	var ve ValidationError

	if strings.TrimSpace(r.EventID) == "" {
		ve.add("eventId", "is required")
	}
	if strings.TrimSpace(r.UpdatedPayload) == "" {
		ve.add("updatedPayload", "is required")
	}
	switch {
	case !r.PayloadFormat.IsValid():
		ve.add("payloadFormat", fmt.Sprintf("invalid value %q", r.PayloadFormat))
	case r.UpdatedPayload != "":
		if err := CheckPayload(r.UpdatedPayload, r.PayloadFormat); err != nil {
			ve.add("updatedPayload", err.Error())
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// CheckPayload reports whether payload is well-formed for format.
// An empty format accepts anything.
func CheckPayload(payload string, format PayloadFormat) error {
	switch format {
	case FormatJSON:
		if !json.Valid([]byte(payload)) {
			return errors.New("is not valid JSON")
		}
	case FormatXML:
		dec := xml.NewDecoder(strings.NewReader(payload))
		sawElement := false
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("is not valid XML: %v", err)
			}
			if _, ok := tok.(xml.StartElement); ok {
				sawElement = true
			}
		}
		if !sawElement {
			return errors.New("is not valid XML: no root element")
		}
	}
	return nil
}
