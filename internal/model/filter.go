package model

import "time"

// EventFilter holds criteria for querying events. Zero values are ignored.
type EventFilter struct {
	Status          Status    `json:"status,omitempty"`
	OrderID         string    `json:"order_id,omitempty"`          // exact match
	OrderIDContains string    `json:"order_id_contains,omitempty"` // case-insensitive substring
	IntegrationName string    `json:"integration_name,omitempty"`
	CreatedAfter    time.Time `json:"created_after,omitempty"`  // inclusive
	CreatedBefore   time.Time `json:"created_before,omitempty"` // inclusive
	Limit           int       `json:"limit,omitempty"`
}
