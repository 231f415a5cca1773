package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oaubike/relay/internal/notify"
	"github.com/oaubike/relay/internal/queue"
	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
)

// LastSyncKey is the app setting holding the ISO instant of the last
// completed full drain.
const LastSyncKey = "last_sync_at"

// Replayer re-issues a captured request. Implemented by *api.Client.
type Replayer interface {
	Replay(ctx context.Context, path, token string, body []byte) (status int, err error)
}

// Syncer drains the offline queues against the backend.
//
// Per-kind syncs are serialized by a guard flag: a SyncQueue call for a
// kind that is already draining returns immediately instead of racing the
// in-flight pass on read-modify-write record updates.
type Syncer struct {
	queues    *queue.Manager
	client    Replayer
	notifier  notify.Notifier
	handle    *store.Handle
	cacheName string
	log       *slog.Logger
	guards    map[record.Kind]*atomic.Bool
}

// New creates a Syncer. handle and cacheName feed the periodic cleanup
// pass (stale cache eviction); notifier receives emergency delivery
// notifications.
func New(queues *queue.Manager, client Replayer, notifier notify.Notifier, handle *store.Handle, cacheName string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	guards := make(map[record.Kind]*atomic.Bool, len(record.Kinds))
	for _, kind := range record.Kinds {
		guards[kind] = &atomic.Bool{}
	}
	return &Syncer{
		queues:    queues,
		client:    client,
		notifier:  notifier,
		handle:    handle,
		cacheName: cacheName,
		log:       log,
		guards:    guards,
	}
}

// SyncQueue drains one kind's queue against the backend.
//
// The returned boolean means "no outstanding retryable work remains from
// this pass", NOT "all data was delivered": it is false only when every
// attempted item failed and nothing succeeded. A queue holding only
// ceiling-exhausted records reports true - those records are marked
// synced and dropped rather than retried forever.
func (s *Syncer) SyncQueue(ctx context.Context, kind record.Kind) bool {
	pol, ok := PolicyFor(kind)
	if !ok {
		s.log.Error("sync requested for unknown kind", "kind", kind)
		return false
	}

	guard := s.guards[kind]
	if !guard.CompareAndSwap(false, true) {
		s.log.Debug("sync already in progress, skipping", "kind", kind)
		return true
	}
	defer guard.Store(false)

	items, err := s.queues.ListPending(ctx, kind)
	if err != nil {
		s.log.Warn("failed to list pending records", "kind", kind, "error", err)
		return false
	}
	if len(items) == 0 {
		s.log.Debug("nothing to sync", "kind", kind)
		return true
	}

	s.log.Info("starting sync", "kind", kind, "pending", len(items))

	var successCount, failureCount int
	for _, item := range items {
		if item.RetryCount >= pol.MaxRetries {
			// Retry budget exhausted: stop retrying, drop the record.
			s.log.Warn("max retries reached, dropping record", "kind", kind, "id", item.ID)
			if err := s.queues.MarkSynced(ctx, kind, item.ID); err != nil {
				s.log.Warn("failed to drop exhausted record", "kind", kind, "id", item.ID, "error", err)
			}
			continue
		}

		status, err := s.client.Replay(ctx, pol.Endpoint, item.Token, item.Body)
		if err == nil && status >= 200 && status < 300 {
			if err := s.queues.MarkSynced(ctx, kind, item.ID); err != nil {
				s.log.Warn("failed to mark record synced", "kind", kind, "id", item.ID, "error", err)
			}
			successCount++
			s.log.Debug("record synced", "kind", kind, "id", item.ID)
			if pol.Notify {
				s.notifier.AlertDelivered(item.ID)
			}
		} else {
			if _, rerr := s.queues.IncrementRetry(ctx, kind, item.ID); rerr != nil {
				s.log.Warn("failed to increment retry count", "kind", kind, "id", item.ID, "error", rerr)
			}
			failureCount++
			if err != nil {
				s.log.Warn("record replay failed", "kind", kind, "id", item.ID, "error", err)
			} else {
				s.log.Warn("record replay rejected", "kind", kind, "id", item.ID, "status", status)
			}
		}

		// Pace requests so a drain doesn't hammer the backend.
		if !sleepCtx(ctx, pol.Delay) {
			break
		}
	}

	s.log.Info("sync completed", "kind", kind, "success", successCount, "failed", failureCount)

	if successCount > 0 {
		if _, err := s.queues.PurgeSynced(ctx, kind); err != nil {
			s.log.Warn("post-sync purge failed", "kind", kind, "error", err)
		}
	}

	return successCount > 0 || failureCount == 0
}

// SyncAll drains every queue concurrently. The error is nil unless the
// context was cancelled; per-item failures are accounted inside each
// SyncQueue pass, not surfaced here.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, kind := range record.Kinds {
		wg.Add(1)
		go func(kind record.Kind) {
			defer wg.Done()
			s.SyncQueue(ctx, kind)
		}(kind)
	}
	wg.Wait()
	if ctx.Err() == nil {
		s.stampLastSync(ctx)
	}
	return ctx.Err()
}

// stampLastSync records when the last full drain finished, for the
// status surface. Best-effort.
func (s *Syncer) stampLastSync(ctx context.Context) {
	st, err := s.handle.Open()
	if err != nil {
		return
	}
	now := time.Now()
	value, err := json.Marshal(record.ISOTime(now))
	if err != nil {
		return
	}
	setting := record.Setting{
		Key:       LastSyncKey,
		Value:     value,
		Timestamp: now.UnixMilli(),
		UpdatedAt: record.ISOTime(now),
	}
	if err := st.PutSetting(ctx, setting); err != nil {
		s.log.Warn("failed to record last sync instant", "error", err)
	}
}

// Cleanup runs the maintenance pass: location cap sweep, synced-record
// purge for every kind, and stale cache-generation eviction. Each step is
// best-effort and logged.
func (s *Syncer) Cleanup(ctx context.Context) {
	if _, err := s.queues.EnforceLocationCap(ctx); err != nil {
		s.log.Warn("cleanup: location cap sweep failed", "error", err)
	}

	for _, kind := range record.Kinds {
		if _, err := s.queues.PurgeSynced(ctx, kind); err != nil {
			s.log.Warn("cleanup: purge failed", "kind", kind, "error", err)
		}
	}

	st, err := s.handle.Open()
	if err != nil {
		s.log.Warn("cleanup: store unavailable", "error", err)
		return
	}
	evicted, err := st.EvictStaleCaches(ctx, s.cacheName)
	if err != nil {
		s.log.Warn("cleanup: cache eviction failed", "error", err)
		return
	}
	if evicted > 0 {
		s.log.Info("cleanup: evicted stale cache entries", "count", evicted)
	}
}

// RunPeriodic drains and cleans on a fixed interval until ctx ends.
// One pass runs immediately on start.
func (s *Syncer) RunPeriodic(ctx context.Context, interval time.Duration) {
	s.log.Info("periodic sync started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.SyncAll(ctx); err != nil {
			return
		}
		s.Cleanup(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("periodic sync stopped")
			return
		case <-ticker.C:
		}
	}
}

// sleepCtx sleeps for d unless ctx ends first; reports whether the full
// sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
