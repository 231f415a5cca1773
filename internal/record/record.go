package record

import (
	"encoding/json"
	"time"
)

// Kind identifies a queued record collection.
type Kind string

const (
	// KindLocation is the collection of offline location updates.
	KindLocation Kind = "location"
	// KindEmergency is the collection of offline emergency alerts.
	KindEmergency Kind = "emergency"
)

// Kinds lists all queued record kinds in sync order (emergencies drain
// ahead of location updates when both are triggered together).
var Kinds = []Kind{KindEmergency, KindLocation}

// Valid reports whether k names a known queued collection.
func (k Kind) Valid() bool {
	return k == KindLocation || k == KindEmergency
}

// PriorityHigh is the fixed priority assigned to emergency alerts.
const PriorityHigh = "high"

// Record is a queued offline request awaiting replay against the backend.
//
// Location updates and emergency alerts share one shape; the alert fields
// (AlertType, Message, Priority) stay empty for location records.
//
// Lifecycle: created by the interception policy when a request fails,
// mutated by the sync engine (retry counter, synced flag, timestamps),
// deleted by cleanup (post-success purge and cap eviction). RetryCount
// never decreases; Synced=true records are eligible for deletion only.
type Record struct {
	ID           int64
	Kind         Kind
	Latitude     float64
	Longitude    float64
	Accuracy     float64
	AlertType    string
	Message      string
	Priority     string
	SessionToken string
	Timestamp    int64  // creation instant, epoch millis
	CreatedAt    string // creation instant, ISO 8601
	Synced       bool
	RetryCount   int
	LastRetry    string // ISO 8601, empty until first failed replay
	SyncedAt     string // ISO 8601, empty until marked synced
}

// Setting is a keyed application setting. Writing an existing key
// overwrites Value and UpdatedAt.
type Setting struct {
	Key       string
	Value     json.RawMessage
	Timestamp int64
	UpdatedAt string
}

// LocationPayload is the captured body of a failed location-update request.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// EmergencyPayload is the captured body of a failed emergency-alert request.
type EmergencyPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AlertType string  `json:"alert_type"`
	Message   string  `json:"message"`
}

// NewLocation builds an unsynced location record from a captured payload.
func NewLocation(p LocationPayload, token string, now time.Time) Record {
	return Record{
		Kind:         KindLocation,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Accuracy:     p.Accuracy,
		SessionToken: token,
		Timestamp:    now.UnixMilli(),
		CreatedAt:    ISOTime(now),
	}
}

// NewEmergency builds an unsynced emergency record from a captured payload.
// Emergency alerts always carry high priority.
func NewEmergency(p EmergencyPayload, token string, now time.Time) Record {
	return Record{
		Kind:         KindEmergency,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		AlertType:    p.AlertType,
		Message:      p.Message,
		Priority:     PriorityHigh,
		SessionToken: token,
		Timestamp:    now.UnixMilli(),
		CreatedAt:    ISOTime(now),
	}
}

// ISOTime formats t as a UTC ISO 8601 string with millisecond precision,
// e.g. "2025-03-14T09:26:53.000Z". This is the canonical timestamp format
// for record metadata and replayed request bodies.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
