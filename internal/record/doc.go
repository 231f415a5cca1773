// Package record defines the offline queue data model: queued location
// updates and emergency alerts, keyed app settings, and the pure
// projections from stored records back to the request bodies they are
// replayed with.
//
// Records are append-mostly. The interception policy creates them, the
// sync engine flips their synced flag and bumps retry counters, and
// cleanup deletes them. Nothing else touches a record.
package record
