// Package syncer drains the offline queues against the backend with
// per-kind policy: retry ceilings, inter-item pacing, delivery
// notifications, and post-success cleanup.
//
// Ordering guarantee: within one SyncQueue pass, items are processed
// strictly sequentially, and overlapping passes for the same kind are
// skipped via a guard flag. Both matter because record updates are
// read-then-write through the store and are not atomic across that
// round trip.
//
// A pass killed mid-drain is safe to resume: already-delivered items are
// marked synced (idempotent), untouched items wait for the next trigger.
package syncer
