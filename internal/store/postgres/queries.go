package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/eventdesk/internal/idgen"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/store"
)

// eventColumns is the column list used for SELECT statements on the integration_events table.
const eventColumns = `id, order_id, status, message, payload, original_payload,
	payload_format, error_details, retry_count, retry_history, integration_name,
	version, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInsertEvent(ctx context.Context, db executor, e *model.Event) (string, error) {
	if e.ID == "" {
		id, err := idgen.NewEventID()
		if err != nil {
			return "", err
		}
		e.ID = id
	}
	history, err := historyJSON(e.RetryHistory)
	if err != nil {
		return "", fmt.Errorf("encode retry history: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO integration_events (
			id, order_id, status, message, payload, original_payload,
			payload_format, error_details, retry_count, retry_history, integration_name,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			1, $12, $13
		)`,
		e.ID,
		e.OrderID,
		string(e.Status),
		nullString(e.Message),
		nullString(e.Payload),
		nullString(e.OriginalPayload),
		nullString(string(e.PayloadFormat)),
		nullString(e.ErrorDetails),
		e.RetryCount,
		history,
		nullString(e.IntegrationName),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	e.Version = 1
	return e.ID, nil
}

func queryUpdateEvent(ctx context.Context, db executor, e *model.Event, expectedVersion int64) error {
	history, err := historyJSON(e.RetryHistory)
	if err != nil {
		return fmt.Errorf("encode retry history: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE integration_events SET
			order_id = $2, status = $3, message = $4, payload = $5,
			original_payload = $6, payload_format = $7, error_details = $8,
			retry_count = $9, retry_history = $10, integration_name = $11,
			updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $13`,
		e.ID,
		e.OrderID,
		string(e.Status),
		nullString(e.Message),
		nullString(e.Payload),
		nullString(e.OriginalPayload),
		nullString(string(e.PayloadFormat)),
		nullString(e.ErrorDetails),
		e.RetryCount,
		history,
		nullString(e.IntegrationName),
		e.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		// Distinguish a missing row from a lost update.
		var one int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM integration_events WHERE id = $1`, e.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		return store.ErrConflict
	}
	e.Version = expectedVersion + 1
	return nil
}

func queryGetEvent(ctx context.Context, db executor, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM integration_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Status != "" {
		whereClauses = append(whereClauses, "status = "+nextArg())
		args = append(args, string(filter.Status))
	}

	if filter.OrderID != "" {
		whereClauses = append(whereClauses, "order_id = "+nextArg())
		args = append(args, filter.OrderID)
	}

	if filter.OrderIDContains != "" {
		whereClauses = append(whereClauses, "order_id ILIKE '%' || "+nextArg()+" || '%'")
		args = append(args, escapeLike(filter.OrderIDContains))
	}

	if filter.IntegrationName != "" {
		whereClauses = append(whereClauses, "integration_name = "+nextArg())
		args = append(args, filter.IntegrationName)
	}

	if !filter.CreatedAfter.IsZero() {
		whereClauses = append(whereClauses, "created_at >= "+nextArg())
		args = append(args, filter.CreatedAfter)
	}

	if !filter.CreatedBefore.IsZero() {
		whereClauses = append(whereClauses, "created_at <= "+nextArg())
		args = append(args, filter.CreatedBefore)
	}

	query := "SELECT " + eventColumns + " FROM integration_events"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
