package api

// SessionRequest opens a session for a driver or passenger.
type SessionRequest struct {
	Role             string `json:"role"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// Session is the grant returned by the create-session endpoint.
type Session struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// LocationUpdate is a position reading posted to the backend.
type LocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// AvailabilityReport reports observed bike availability at a position.
type AvailabilityReport struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Availability string  `json:"availability"`
}

// EmergencyAlert raises an alert with the rider's position.
type EmergencyAlert struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AlertType string  `json:"alert_type"`
	Message   string  `json:"message"`
}

// ActiveLocation is one visible participant position from the
// active-locations query.
type ActiveLocation struct {
	SessionID string  `json:"session_id"`
	Role      string  `json:"role"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}
