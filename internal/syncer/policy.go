package syncer

import (
	"time"

	"github.com/oaubike/relay/internal/record"
)

// Policy is the per-kind sync behavior: how many failed replays a record
// gets before it is dropped, how long to pause between items, where to
// replay, and whether delivery raises a user-facing notification.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Endpoint   string
	Notify     bool
}

// policies is the single source of per-kind constants. Emergency alerts
// get double the retry budget and half the pacing delay of location
// updates, and their delivery is announced.
var policies = map[record.Kind]Policy{
	record.KindLocation: {
		MaxRetries: 5,
		Delay:      100 * time.Millisecond,
		Endpoint:   "/api/location/update",
	},
	record.KindEmergency: {
		MaxRetries: 10,
		Delay:      50 * time.Millisecond,
		Endpoint:   "/api/emergency/alert",
		Notify:     true,
	},
}

// PolicyFor returns the sync policy for a kind.
func PolicyFor(kind record.Kind) (Policy, bool) {
	p, ok := policies[kind]
	return p, ok
}
