package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		message         sql.NullString
		payload         sql.NullString
		originalPayload sql.NullString
		payloadFormat   sql.NullString
		errorDetails    sql.NullString
		integrationName sql.NullString
		history         []byte
	)

	err := row.Scan(
		&e.ID,
		&e.OrderID,
		&e.Status,
		&message,
		&payload,
		&originalPayload,
		&payloadFormat,
		&errorDetails,
		&e.RetryCount,
		&history,
		&integrationName,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Message = message.String
	e.Payload = payload.String
	e.OriginalPayload = originalPayload.String
	e.PayloadFormat = model.PayloadFormat(payloadFormat.String)
	e.ErrorDetails = errorDetails.String
	e.IntegrationName = integrationName.String
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()

	if len(history) > 0 {
		if err := json.Unmarshal(history, &e.RetryHistory); err != nil {
			return nil, fmt.Errorf("decode retry_history for %s: %w", e.ID, err)
		}
		if len(e.RetryHistory) == 0 {
			e.RetryHistory = nil
		}
	}

	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// historyJSON encodes a retry history for the JSONB column. A nil history
// is stored as an empty array.
func historyJSON(h []model.RetryHistoryEntry) ([]byte, error) {
	if len(h) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}
