package store

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestHandle_LazyOpen(t *testing.T) {
	h := NewHandle(filepath.Join(t.TempDir(), "relay.db"))

	if h.Ready() {
		t.Error("Ready() true before first Open()")
	}

	s, err := h.Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer h.Close()

	if s == nil {
		t.Fatal("Open() returned nil store")
	}
	if !h.Ready() {
		t.Error("Ready() false after successful Open()")
	}
}

func TestHandle_ConcurrentOpenSharesOneStore(t *testing.T) {
	h := NewHandle(filepath.Join(t.TempDir(), "relay.db"))
	defer h.Close()

	const callers = 16
	stores := make([]*Store, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = h.Open()
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: Open() failed: %v", i, errs[i])
		}
		if stores[i] != stores[0] {
			t.Fatalf("caller %d received a different store handle", i)
		}
	}
}

func TestHandle_OpenErrorSticks(t *testing.T) {
	h := NewHandle("/nonexistent/dir/relay.db")

	_, err1 := h.Open()
	if err1 == nil {
		t.Fatal("expected error for invalid path")
	}
	_, err2 := h.Open()
	if err2 == nil {
		t.Fatal("expected same error on second Open()")
	}
	if h.Ready() {
		t.Error("Ready() true after failed Open()")
	}
}

func TestHandle_CloseBeforeOpen(t *testing.T) {
	h := NewHandle(filepath.Join(t.TempDir(), "relay.db"))
	if err := h.Close(); err != nil {
		t.Errorf("Close() before Open() errored: %v", err)
	}
}
