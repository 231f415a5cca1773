package syncer

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oaubike/relay/internal/api"
	"github.com/oaubike/relay/internal/queue"
	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
)

type recordingNotifier struct {
	mu        sync.Mutex
	stored    []int64
	delivered []int64
}

func (n *recordingNotifier) AlertStored(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stored = append(n.stored, id)
}

func (n *recordingNotifier) AlertDelivered(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, id)
}

func (n *recordingNotifier) deliveredIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.delivered...)
}

type fixture struct {
	syncer   *Syncer
	queues   *queue.Manager
	notifier *recordingNotifier
	handle   *store.Handle
}

func newFixture(t *testing.T, backendURL string) *fixture {
	t.Helper()
	handle := store.NewHandle(filepath.Join(t.TempDir(), "relay.db"))
	t.Cleanup(func() { handle.Close() })

	queues := queue.New(handle, slog.Default())
	client, err := api.New(backendURL, time.Second)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	return &fixture{
		syncer:   New(queues, client, notifier, handle, "bike-app-v1", slog.Default()),
		queues:   queues,
		notifier: notifier,
		handle:   handle,
	}
}

const (
	locationBody  = `{"latitude":7.5181,"longitude":4.5284,"accuracy":12.5}`
	emergencyBody = `{"latitude":7.5181,"longitude":4.5284,"alert_type":"panic","message":"help"}`
)

func TestSyncQueue_DrainsAllPending(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/location/update", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok-1")
		require.NoError(t, err)
	}

	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())

	// Delivered records were purged, not just flagged.
	items, err := f.queues.ListPending(ctx, record.KindLocation)
	require.NoError(t, err)
	assert.Empty(t, items)

	st, err := f.handle.Open()
	require.NoError(t, err)
	synced, err := st.RecordsBySynced(ctx, record.KindLocation, true)
	require.NoError(t, err)
	assert.Empty(t, synced, "post-success purge should have removed synced records")
}

func TestSyncQueue_EmptyQueueIsSuccess(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)

	ok := f.syncer.SyncQueue(context.Background(), record.KindLocation)
	assert.True(t, ok)
	assert.Zero(t, calls.Load(), "no network calls for an empty queue")
}

func TestSyncQueue_AllFailedReturnsFalse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	id, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.False(t, ok)

	items, err := f.queues.ListPending(ctx, record.KindLocation)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, 1, items[0].RetryCount)
}

func TestSyncQueue_PartialSuccessReturnsTrue(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)
	_, err = f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.True(t, ok)

	items, err := f.queues.ListPending(ctx, record.KindLocation)
	require.NoError(t, err)
	require.Len(t, items, 1, "failed item stays pending")
	assert.Equal(t, 1, items[0].RetryCount)
}

func TestSyncQueue_TransportFailureIncrementsRetry(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // Refuse connections.

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.False(t, ok)

	items, err := f.queues.ListPending(ctx, record.KindLocation)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
}

func TestSyncQueue_CeilingDropWithoutNetworkCall(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	id, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	pol, _ := PolicyFor(record.KindLocation)
	for i := 0; i < pol.MaxRetries; i++ {
		_, err := f.queues.IncrementRetry(ctx, record.KindLocation, id)
		require.NoError(t, err)
	}

	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.True(t, ok, "a queue of only exhausted records reports no outstanding retryable work")
	assert.Zero(t, calls.Load(), "exhausted records must not be replayed")

	items, err := f.queues.ListPending(ctx, record.KindLocation)
	require.NoError(t, err)
	assert.Empty(t, items, "exhausted record was dropped from the pending set")
}

func TestSyncQueue_EmergencyExhaustionLifecycle(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	id, err := f.queues.Enqueue(ctx, record.KindEmergency, []byte(emergencyBody), "tok")
	require.NoError(t, err)

	pol, _ := PolicyFor(record.KindEmergency)
	for i := 0; i < pol.MaxRetries; i++ {
		ok := f.syncer.SyncQueue(ctx, record.KindEmergency)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(pol.MaxRetries), calls.Load())

	items, err := f.queues.ListPending(ctx, record.KindEmergency)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pol.MaxRetries, items[0].RetryCount)

	// One more pass: no network call, record dropped.
	ok := f.syncer.SyncQueue(ctx, record.KindEmergency)
	assert.True(t, ok)
	assert.Equal(t, int32(pol.MaxRetries), calls.Load())
	assert.Empty(t, f.notifier.deliveredIDs(), "a dropped alert is not announced as delivered")

	// Cleanup purges the dropped record.
	f.syncer.Cleanup(ctx)
	st, err := f.handle.Open()
	require.NoError(t, err)
	_, found, err := st.GetRecord(ctx, record.KindEmergency, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSyncQueue_EmergencyDeliveryNotification(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/emergency/alert", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	id, err := f.queues.Enqueue(ctx, record.KindEmergency, []byte(emergencyBody), "tok")
	require.NoError(t, err)

	ok := f.syncer.SyncQueue(ctx, record.KindEmergency)
	assert.True(t, ok)
	assert.Equal(t, []int64{id}, f.notifier.deliveredIDs())
}

func TestSyncQueue_NoNotificationForLocation(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.Empty(t, f.notifier.deliveredIDs())
}

func TestSyncQueue_OverlappingSameKindSkipped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- f.syncer.SyncQueue(ctx, record.KindLocation) }()

	<-entered
	// Second pass while the first is mid-flight: skipped, no extra calls.
	ok := f.syncer.SyncQueue(ctx, record.KindLocation)
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	assert.True(t, <-done)
}

func TestSyncAll_DrainsBothKinds(t *testing.T) {
	var locCalls, emgCalls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/location/update":
			locCalls.Add(1)
		case "/api/emergency/alert":
			emgCalls.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	_, err := f.queues.Enqueue(ctx, record.KindLocation, []byte(locationBody), "tok")
	require.NoError(t, err)
	_, err = f.queues.Enqueue(ctx, record.KindEmergency, []byte(emergencyBody), "tok")
	require.NoError(t, err)

	require.NoError(t, f.syncer.SyncAll(ctx))
	assert.Equal(t, int32(1), locCalls.Load())
	assert.Equal(t, int32(1), emgCalls.Load())
}

func TestSyncAll_StampsLastSync(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	require.NoError(t, f.syncer.SyncAll(ctx))

	st, err := f.handle.Open()
	require.NoError(t, err)
	setting, found, err := st.GetSetting(ctx, LastSyncKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(setting.Value), "T", "stamp is an ISO instant")
}

func TestPolicyFor_UnknownKind(t *testing.T) {
	_, ok := PolicyFor(record.Kind("bogus"))
	assert.False(t, ok)
}
