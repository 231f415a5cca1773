// Package netstate tracks backend reachability for the relay. The
// interception layer feeds it fetch outcomes; the offline-to-online
// transition fires a callback that schedules queue drains.
package netstate

import (
	"log/slog"
	"sync/atomic"
)

// Tracker holds the current online flag. It starts online; the first
// failed backend exchange flips it.
type Tracker struct {
	online   atomic.Bool
	onOnline func()
	log      *slog.Logger
}

// New creates a Tracker. onOnline runs synchronously on every
// offline-to-online transition; pass nil for no callback. Callbacks that
// do real work should hand it off to a goroutine.
func New(onOnline func(), log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{onOnline: onOnline, log: log}
	t.online.Store(true)
	return t
}

// MarkOnline records a successful backend exchange. Fires the transition
// callback when the tracker was previously offline.
func (t *Tracker) MarkOnline() {
	if t.online.Swap(true) {
		return
	}
	t.log.Info("backend reachable again, scheduling sync")
	if t.onOnline != nil {
		t.onOnline()
	}
}

// MarkOffline records a failed backend exchange.
func (t *Tracker) MarkOffline() {
	if t.online.Swap(false) {
		t.log.Warn("backend unreachable, queueing writes locally")
	}
}

// Online reports the current flag.
func (t *Tracker) Online() bool {
	return t.online.Load()
}
