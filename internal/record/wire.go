package record

import (
	"encoding/json"
	"fmt"
)

// LocationWire is the exact body replayed to the location-update endpoint.
// Timestamp carries the record's CreatedAt, not the replay instant, so the
// backend sees when the reading was taken rather than when it was delivered.
type LocationWire struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// EmergencyWire is the exact body replayed to the emergency-alert endpoint.
type EmergencyWire struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AlertType string  `json:"alert_type"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
}

// WireBody projects a stored record back into the request body it will be
// replayed with. The projection is pure: it reads only record fields.
func (r Record) WireBody() ([]byte, error) {
	switch r.Kind {
	case KindLocation:
		return json.Marshal(LocationWire{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Accuracy:  r.Accuracy,
			Timestamp: r.CreatedAt,
		})
	case KindEmergency:
		return json.Marshal(EmergencyWire{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			AlertType: r.AlertType,
			Message:   r.Message,
			Timestamp: r.CreatedAt,
		})
	default:
		return nil, fmt.Errorf("wire body: unknown kind %q", r.Kind)
	}
}
