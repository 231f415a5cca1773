package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
)

// UnsyncedLocationCap bounds the pending location queue. After every
// location enqueue the oldest unsynced readings beyond this cap are
// evicted - a stale position is worthless once newer ones exist.
const UnsyncedLocationCap = 100

// Item is a pending record projected into replayable form: the original
// request body plus the metadata the sync engine needs.
type Item struct {
	ID         int64
	Token      string
	Body       []byte
	RetryCount int
}

// Manager translates store primitives into queue semantics per collection.
//
// All read-modify-write sequences here (MarkSynced, IncrementRetry) are
// non-atomic across the store round trip; the sync engine serializes
// per-kind access so two writers never race on the same record.
type Manager struct {
	handle *store.Handle
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Manager over the shared store handle.
func New(handle *store.Handle, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		handle: handle,
		log:    log,
		now:    time.Now,
	}
}

// Enqueue captures a failed request body into the kind's collection and
// returns the stored record id. The body is the JSON payload of the
// original request; token is its bearer token.
//
// Location enqueues additionally enforce the unsynced cap.
func (m *Manager) Enqueue(ctx context.Context, kind record.Kind, body []byte, token string) (int64, error) {
	rec, err := m.buildRecord(kind, body, token)
	if err != nil {
		return 0, err
	}

	st, err := m.handle.Open()
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}

	id, err := st.AddRecord(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	m.log.Info("request stored for offline sync", "kind", kind, "id", id)

	if kind == record.KindLocation {
		if _, err := m.EnforceLocationCap(ctx); err != nil {
			// Cap enforcement is best-effort; the new record is already stored.
			m.log.Warn("location cap enforcement failed", "error", err)
		}
	}

	return id, nil
}

func (m *Manager) buildRecord(kind record.Kind, body []byte, token string) (record.Record, error) {
	switch kind {
	case record.KindLocation:
		var p record.LocationPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return record.Record{}, fmt.Errorf("enqueue location: parse body: %w", err)
		}
		return record.NewLocation(p, token, m.now()), nil
	case record.KindEmergency:
		var p record.EmergencyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return record.Record{}, fmt.Errorf("enqueue emergency: parse body: %w", err)
		}
		return record.NewEmergency(p, token, m.now()), nil
	default:
		return record.Record{}, fmt.Errorf("enqueue: unknown kind %q", kind)
	}
}

// ListPending returns the kind's unsynced records projected into replay
// items. Location items come back in insertion order. Emergency items are
// sorted high priority first, then newest creation instant first, so the
// most recent alert is the first one retried.
func (m *Manager) ListPending(ctx context.Context, kind record.Kind) ([]Item, error) {
	st, err := m.handle.Open()
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	records, err := st.RecordsBySynced(ctx, kind, false)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	if kind == record.KindEmergency {
		sort.SliceStable(records, func(i, j int) bool {
			hi, hj := records[i].Priority == record.PriorityHigh, records[j].Priority == record.PriorityHigh
			if hi != hj {
				return hi
			}
			return records[i].Timestamp > records[j].Timestamp
		})
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		body, err := rec.WireBody()
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		items = append(items, Item{
			ID:         rec.ID,
			Token:      rec.SessionToken,
			Body:       body,
			RetryCount: rec.RetryCount,
		})
	}

	m.log.Debug("retrieved pending records", "kind", kind, "count", len(items))
	return items, nil
}

// MarkSynced flags a record as delivered and stamps synced_at.
// Idempotent: a missing id or an already-synced record is a no-op, so a
// sync interrupted after delivery can safely resume.
func (m *Manager) MarkSynced(ctx context.Context, kind record.Kind, id int64) error {
	st, err := m.handle.Open()
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	rec, found, err := st.GetRecord(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if !found || rec.Synced {
		// Already handled (purged or marked by an earlier pass).
		return nil
	}

	rec.Synced = true
	rec.SyncedAt = record.ISOTime(m.now())
	if err := st.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	m.log.Debug("record marked synced", "kind", kind, "id", id)
	return nil
}

// IncrementRetry bumps a record's retry counter and stamps last_retry,
// returning the new count. Returns 0 when the record no longer exists.
// The counter never decreases.
func (m *Manager) IncrementRetry(ctx context.Context, kind record.Kind, id int64) (int, error) {
	st, err := m.handle.Open()
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}

	rec, found, err := st.GetRecord(ctx, kind, id)
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	if !found {
		return 0, nil
	}

	rec.RetryCount++
	rec.LastRetry = record.ISOTime(m.now())
	if err := st.PutRecord(ctx, rec); err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return rec.RetryCount, nil
}

// PurgeSynced deletes every synced record in the kind's collection and
// returns the number deleted. Each key is attempted independently: one
// failed delete is logged and does not abort the batch.
func (m *Manager) PurgeSynced(ctx context.Context, kind record.Kind) (int, error) {
	st, err := m.handle.Open()
	if err != nil {
		return 0, fmt.Errorf("purge synced: %w", err)
	}

	ids, err := st.SyncedIDs(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("purge synced: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := st.DeleteRecord(ctx, kind, id); err != nil {
			m.log.Warn("failed to delete synced record", "kind", kind, "id", id, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.log.Info("purged synced records", "kind", kind, "count", deleted)
	}
	return deleted, nil
}

// EnforceLocationCap evicts the oldest unsynced location records until the
// collection is back within UnsyncedLocationCap. Returns the number evicted.
func (m *Manager) EnforceLocationCap(ctx context.Context) (int, error) {
	st, err := m.handle.Open()
	if err != nil {
		return 0, fmt.Errorf("enforce location cap: %w", err)
	}

	count, err := st.CountUnsynced(ctx, record.KindLocation)
	if err != nil {
		return 0, fmt.Errorf("enforce location cap: %w", err)
	}
	if count <= UnsyncedLocationCap {
		return 0, nil
	}

	ids, err := st.OldestUnsyncedIDs(ctx, record.KindLocation, count-UnsyncedLocationCap)
	if err != nil {
		return 0, fmt.Errorf("enforce location cap: %w", err)
	}

	evicted := 0
	for _, id := range ids {
		if err := st.DeleteRecord(ctx, record.KindLocation, id); err != nil {
			m.log.Warn("failed to evict old location update", "id", id, "error", err)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		m.log.Info("evicted old location updates", "count", evicted)
	}
	return evicted, nil
}
