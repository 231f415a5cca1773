// Package queue layers queue semantics over the persistent record store:
// enqueueing captured request bodies, listing pending records in replay
// order, marking delivery, retry accounting, and cleanup (synced purge
// and the unsynced location cap).
package queue
