package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oaubike/relay/internal/record"
)

// tableFor maps a record kind to its collection table.
func tableFor(kind record.Kind) (string, error) {
	switch kind {
	case record.KindLocation:
		return "location_updates", nil
	case record.KindEmergency:
		return "emergency_alerts", nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

const recordColumns = `id, latitude, longitude, accuracy, alert_type, message, priority,
	session_token, timestamp, created_at, synced, retry_count, last_retry, synced_at`

// AddRecord inserts a record into its kind's collection and returns the
// store-assigned id. The record's ID field is ignored on insert.
func (s *Store) AddRecord(ctx context.Context, rec record.Record) (int64, error) {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return 0, fmt.Errorf("add record: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table+`
		(latitude, longitude, accuracy, alert_type, message, priority,
		 session_token, timestamp, created_at, synced, retry_count, last_retry, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Latitude,
		rec.Longitude,
		rec.Accuracy,
		rec.AlertType,
		rec.Message,
		rec.Priority,
		rec.SessionToken,
		rec.Timestamp,
		rec.CreatedAt,
		boolToInt(rec.Synced),
		rec.RetryCount,
		rec.LastRetry,
		rec.SyncedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("add record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add record: last insert id: %w", err)
	}
	return id, nil
}

// GetRecord retrieves a single record by id.
// Returns found=false (not an error) when no record exists.
func (s *Store) GetRecord(ctx context.Context, kind record.Kind, id int64) (record.Record, bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("get record: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM `+table+`
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row, kind)
	if err == sql.ErrNoRows {
		return record.Record{}, false, nil
	}
	if err != nil {
		return record.Record{}, false, fmt.Errorf("get record: %w", err)
	}
	return rec, true, nil
}

// PutRecord upserts a record by id. Used by the queue manager's
// read-modify-write paths (mark synced, increment retry).
func (s *Store) PutRecord(ctx context.Context, rec record.Record) error {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+`
		(`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			accuracy = excluded.accuracy,
			alert_type = excluded.alert_type,
			message = excluded.message,
			priority = excluded.priority,
			session_token = excluded.session_token,
			timestamp = excluded.timestamp,
			created_at = excluded.created_at,
			synced = excluded.synced,
			retry_count = excluded.retry_count,
			last_retry = excluded.last_retry,
			synced_at = excluded.synced_at
	`,
		rec.ID,
		rec.Latitude,
		rec.Longitude,
		rec.Accuracy,
		rec.AlertType,
		rec.Message,
		rec.Priority,
		rec.SessionToken,
		rec.Timestamp,
		rec.CreatedAt,
		boolToInt(rec.Synced),
		rec.RetryCount,
		rec.LastRetry,
		rec.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// DeleteRecord removes a record by id. Deleting a missing id is a no-op.
func (s *Store) DeleteRecord(ctx context.Context, kind record.Kind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// RecordsBySynced returns all records with the given synced flag,
// ordered by insertion id for a stable replay order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) RecordsBySynced(ctx context.Context, kind record.Kind, synced bool) ([]record.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("records by synced: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM `+table+`
		WHERE synced = ?
		ORDER BY id ASC
	`, boolToInt(synced))
	if err != nil {
		return nil, fmt.Errorf("records by synced: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("records by synced: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records by synced: iterate: %w", err)
	}

	return records, nil
}

// SyncedIDs returns the ids of all synced records in the collection,
// for per-key best-effort purging.
func (s *Store) SyncedIDs(ctx context.Context, kind record.Kind) ([]int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("synced ids: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM `+table+` WHERE synced = 1 ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("synced ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("synced ids: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("synced ids: iterate: %w", err)
	}

	return ids, nil
}

// CountUnsynced returns the number of unsynced records in the collection.
func (s *Store) CountUnsynced(ctx context.Context, kind record.Kind) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM `+table+` WHERE synced = 0
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return count, nil
}

// OldestUnsyncedIDs returns up to limit unsynced record ids, oldest by
// timestamp first. Used by cap eviction: when the unsynced location count
// exceeds the cap, the oldest readings are the ones dropped.
func (s *Store) OldestUnsyncedIDs(ctx context.Context, kind record.Kind, limit int) ([]int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("oldest unsynced ids: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM `+table+`
		WHERE synced = 0
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("oldest unsynced ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("oldest unsynced ids: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oldest unsynced ids: iterate: %w", err)
	}

	return ids, nil
}

// scanner abstracts *sql.Row and *sql.Rows for record scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, kind record.Kind) (record.Record, error) {
	var rec record.Record
	var synced int
	err := sc.Scan(
		&rec.ID,
		&rec.Latitude,
		&rec.Longitude,
		&rec.Accuracy,
		&rec.AlertType,
		&rec.Message,
		&rec.Priority,
		&rec.SessionToken,
		&rec.Timestamp,
		&rec.CreatedAt,
		&synced,
		&rec.RetryCount,
		&rec.LastRetry,
		&rec.SyncedAt,
	)
	if err != nil {
		return record.Record{}, err
	}
	rec.Kind = kind
	rec.Synced = synced != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
