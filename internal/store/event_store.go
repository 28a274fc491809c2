package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

const eventColumns = `event_id, event_type, account_id, received_at, payload, processed, processing_error, attempt_count`

// RecordEvent durably stores a webhook delivery. The provider event ID is
// the primary key, so a duplicate delivery races into ON CONFLICT DO
// NOTHING and the existing row is returned with isNew=false. This is the
// ingestion dedup guarantee: two concurrent deliveries of the same event
// yield exactly one row.
func (s *PostgresStore) RecordEvent(ctx context.Context, ev domain.WebhookEvent) (*domain.WebhookEvent, bool, error) {
	var stored domain.WebhookEvent
	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (event_id, event_type, account_id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING `+eventColumns,
		ev.EventID, ev.EventType, ev.AccountID, ev.Payload,
	).Scan(
		&stored.EventID, &stored.EventType, &stored.AccountID, &stored.ReceivedAt,
		&stored.Payload, &stored.Processed, &stored.ProcessingError, &stored.AttemptCount,
	)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("inserting webhook event: %w", err)
	}

	existing, err := s.GetEvent(ctx, ev.EventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("webhook event %s vanished after conflict", ev.EventID)
	}
	return existing, false, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	err := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM webhook_events WHERE event_id = $1
	`, eventID).Scan(
		&ev.EventID, &ev.EventType, &ev.AccountID, &ev.ReceivedAt,
		&ev.Payload, &ev.Processed, &ev.ProcessingError, &ev.AttemptCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying webhook event: %w", err)
	}
	return &ev, nil
}

// MarkProcessed finishes an event. A non-empty note is retained as the
// processing error (used for unhandled types and terminal failures that
// should not be picked up again).
func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID, note string) error {
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processing_error = $2, attempt_count = attempt_count + 1
		WHERE event_id = $1
	`, eventID, notePtr)
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}

// MarkFailed records a transient processing failure and returns the new
// attempt count so the caller can decide whether another retry is due.
// The row stays unprocessed and keeps its original received_at.
func (s *PostgresStore) MarkFailed(ctx context.Context, eventID, errMsg string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE webhook_events
		SET processed = FALSE, processing_error = $2, attempt_count = attempt_count + 1
		WHERE event_id = $1
		RETURNING attempt_count
	`, eventID, errMsg).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("marking event failed: %w", err)
	}
	return attempts, nil
}

// ListUnprocessed returns events left unprocessed with retry budget
// remaining, oldest first. Run at startup to recover deliveries that were
// stored but never handled. Rows at or past maxAttempts stay in the log
// with their error text but are not picked up again.
func (s *PostgresStore) ListUnprocessed(ctx context.Context, maxAttempts, limit int) ([]domain.WebhookEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM webhook_events
		WHERE processed = FALSE AND attempt_count < $1
		ORDER BY received_at ASC
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var ev domain.WebhookEvent
		err := rows.Scan(
			&ev.EventID, &ev.EventType, &ev.AccountID, &ev.ReceivedAt,
			&ev.Payload, &ev.Processed, &ev.ProcessingError, &ev.AttemptCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook event: %w", err)
		}
		events = append(events, ev)
	}

	if events == nil {
		events = []domain.WebhookEvent{}
	}
	return events, nil
}
