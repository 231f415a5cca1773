// Package api is the HTTP client for the campus bike-share backend.
//
// Typed methods cover the foreground operations (sessions, position
// updates, availability reports, emergency alerts, active-location
// queries). Replay re-issues captured offline requests byte-for-byte and
// is the only method the sync engine uses: it distinguishes a completed
// exchange (status returned, any code) from a transport failure (error),
// because the two drive different retry behavior.
package api
