// Package control is the message channel between the foreground app and
// the relay: sync-status queries, forced sync, and the activation signal
// for a pending relay update.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Message types understood by the dispatcher.
const (
	TypeGetSyncStatus = "GET_SYNC_STATUS"
	TypeForceSync     = "FORCE_SYNC"
	TypeSkipWaiting   = "SKIP_WAITING"
)

// Response message types.
const (
	TypeSyncStatus   = "SYNC_STATUS"
	TypeSyncComplete = "SYNC_COMPLETE"
)

// Message is the envelope every control request carries.
type Message struct {
	Type string `json:"type"`
}

// SyncStatus answers GET_SYNC_STATUS.
type SyncStatus struct {
	Type          string `json:"type"`
	IsOnline      bool   `json:"isOnline"`
	DBInitialized bool   `json:"dbInitialized"`
}

// SyncComplete answers FORCE_SYNC. Success is false only when a sync run
// failed outright (unhandled error), not on per-item delivery failures.
type SyncComplete struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SyncRunner triggers a full drain of every offline queue.
// Implemented by *syncer.Syncer.
type SyncRunner interface {
	SyncAll(ctx context.Context) error
}

// Dispatcher routes control messages to relay internals.
type Dispatcher struct {
	runner   SyncRunner
	online   func() bool
	ready    func() bool
	activate func()
	log      *slog.Logger
}

// NewDispatcher wires a dispatcher. online and ready feed the
// sync-status response; activate runs on SKIP_WAITING.
func NewDispatcher(runner SyncRunner, online, ready func() bool, activate func(), log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		runner:   runner,
		online:   online,
		ready:    ready,
		activate: activate,
		log:      log,
	}
}

// Dispatch handles one raw control message and returns the JSON response,
// or nil for fire-and-forget messages (SKIP_WAITING).
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) ([]byte, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}

	d.log.Debug("control message received", "type", msg.Type)

	switch msg.Type {
	case TypeGetSyncStatus:
		return json.Marshal(SyncStatus{
			Type:          TypeSyncStatus,
			IsOnline:      d.online(),
			DBInitialized: d.ready(),
		})

	case TypeForceSync:
		resp := SyncComplete{Type: TypeSyncComplete, Success: true}
		if err := d.runner.SyncAll(ctx); err != nil {
			resp.Success = false
			resp.Error = err.Error()
		}
		return json.Marshal(resp)

	case TypeSkipWaiting:
		d.log.Info("activation requested")
		if d.activate != nil {
			d.activate()
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown control message type %q", msg.Type)
	}
}
