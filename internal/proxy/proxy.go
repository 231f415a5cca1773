package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/oaubike/relay/internal/control"
	"github.com/oaubike/relay/internal/netstate"
	"github.com/oaubike/relay/internal/notify"
	"github.com/oaubike/relay/internal/queue"
	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
)

// ControlPath is the local endpoint carrying control-channel messages.
const ControlPath = "/_relay/message"

// maxCapturedBody bounds how much of a failed request body is read for
// queueing. Position and alert payloads are tiny; anything bigger is not
// ours to store.
const maxCapturedBody = 1 << 20

// Config wires a Server.
type Config struct {
	BackendURL     string
	Queues         *queue.Manager
	Store          *store.Handle
	Tracker        *netstate.Tracker
	Notifier       notify.Notifier
	Dispatcher     *control.Dispatcher
	CacheName      string
	RequestTimeout time.Duration
	Log            *slog.Logger
}

// Server is the local relay front: it forwards API traffic to the
// backend, serves precached static assets, and diverts failed queueable
// writes into the offline queue.
type Server struct {
	backend    *url.URL
	client     *http.Client
	queues     *queue.Manager
	store      *store.Handle
	tracker    *netstate.Tracker
	notifier   notify.Notifier
	dispatcher *control.Dispatcher
	cacheName  string
	log        *slog.Logger
}

// New builds a Server from cfg.
func New(cfg Config) (*Server, error) {
	backend, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		backend:    backend,
		client:     &http.Client{Timeout: timeout},
		queues:     cfg.Queues,
		store:      cfg.Store,
		tracker:    cfg.Tracker,
		notifier:   cfg.Notifier,
		dispatcher: cfg.Dispatcher,
		cacheName:  cfg.CacheName,
		log:        log,
	}, nil
}

// Router returns the relay's route table: control channel, API
// interception, and cache-first static assets for everything else.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(ControlPath, s.handleMessage).Methods(http.MethodPost)
	r.PathPrefix("/api/").HandlerFunc(s.handleAPI)
	r.PathPrefix("/").HandlerFunc(s.handleStatic)
	return r
}

// queueableKind maps an API path to its offline queue. Only the
// location-update and emergency-alert endpoints are ever queued; every
// other path fails open to the caller.
func queueableKind(path string) (record.Kind, bool) {
	switch path {
	case "/api/location/update":
		return record.KindLocation, true
	case "/api/emergency/alert":
		return record.KindEmergency, true
	default:
		return "", false
	}
}

// handleAPI forwards an API request to the backend and applies the
// interception policy to the outcome.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.log.With("request_id", reqID, "method", r.Method, "path", r.URL.Path)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	if err != nil {
		log.Warn("failed to read request body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	outURL := *s.backend
	outURL.Path = r.URL.Path
	outURL.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), bytes.NewReader(body))
	if err != nil {
		log.Error("failed to build outbound request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out.Header = r.Header.Clone()

	resp, err := s.client.Do(out)
	if err != nil {
		s.tracker.MarkOffline()
		log.Info("backend fetch failed, handling offline", "error", err)
		s.respondOffline(w, r, body, log)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	s.tracker.MarkOnline()

	if (resp.StatusCode < 200 || resp.StatusCode >= 300) && r.Method == http.MethodPost {
		if kind, ok := queueableKind(r.URL.Path); ok {
			log.Warn("backend rejected request, queueing for retry", "status", resp.StatusCode)
			s.capture(r, kind, body, log)
		}
	}

	// Pass the backend's answer through unchanged, 2xx or not.
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Debug("response copy interrupted", "error", err)
	}
}

// respondOffline synthesizes the reply for a request the backend never
// answered. Queueable writes are captured and acknowledged with 202;
// everything else gets the offline error.
func (s *Server) respondOffline(w http.ResponseWriter, r *http.Request, body []byte, log *slog.Logger) {
	if r.Method == http.MethodPost {
		if kind, ok := queueableKind(r.URL.Path); ok {
			s.capture(r, kind, body, log)
			writeJSON(w, http.StatusAccepted, offlineAccepted{
				Offline:   true,
				Message:   offlineStoredMessage,
				Timestamp: record.ISOTime(time.Now()),
			}, log)
			return
		}
	}

	writeJSON(w, http.StatusServiceUnavailable, offlineError{
		Error:   "Offline",
		Message: offlineReadMessage,
	}, log)
}

// capture diverts a failed request into the offline queue. Persistence is
// best-effort: a storage failure is logged and the caller still receives
// its synthesized acceptance, because the source handler will retry at
// its own cadence anyway.
func (s *Server) capture(r *http.Request, kind record.Kind, body []byte, log *slog.Logger) {
	token := bearerToken(r)
	id, err := s.queues.Enqueue(r.Context(), kind, body, token)
	if err != nil {
		log.Warn("failed to queue request for offline sync", "kind", kind, "error", err)
		return
	}
	log.Info("request queued for offline sync", "kind", kind, "id", id)
	if kind == record.KindEmergency {
		s.notifier.AlertStored(id)
	}
}

// handleStatic serves static assets cache-first, falling back to the
// backend on a miss.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Open()
	if err == nil {
		entry, found, gerr := st.GetCacheEntry(r.Context(), s.cacheName, r.URL.Path)
		if gerr != nil {
			s.log.Warn("cache lookup failed", "path", r.URL.Path, "error", gerr)
		} else if found {
			if entry.ContentType != "" {
				w.Header().Set("Content-Type", entry.ContentType)
			}
			w.Write(entry.Body)
			return
		}
	} else {
		s.log.Warn("store unavailable for cache lookup", "error", err)
	}

	outURL := *s.backend
	outURL.Path = r.URL.Path
	outURL.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), nil)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out.Header = r.Header.Clone()

	resp, err := s.client.Do(out)
	if err != nil {
		s.log.Info("static fetch failed while offline", "path", r.URL.Path)
		http.Error(w, "unable to reach backend", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// handleMessage carries the control channel over the local socket.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, s.log)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

// Precache fetches the given paths from the backend into the current
// cache generation and returns how many were stored. Failures are logged
// and skipped; precaching is opportunistic.
func (s *Server) Precache(paths []string) int {
	st, err := s.store.Open()
	if err != nil {
		s.log.Warn("precache skipped, store unavailable", "error", err)
		return 0
	}

	cached := 0
	for _, path := range paths {
		outURL := *s.backend
		outURL.Path = path

		resp, err := s.client.Get(outURL.String())
		if err != nil {
			s.log.Warn("precache fetch failed", "path", path, "error", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			s.log.Warn("precache fetch rejected", "path", path, "status", resp.StatusCode)
			continue
		}

		entry := store.CacheEntry{
			CacheName:   s.cacheName,
			URL:         path,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
			FetchedAt:   record.ISOTime(time.Now()),
		}
		if err := st.PutCacheEntry(context.Background(), entry); err != nil {
			s.log.Warn("precache store failed", "path", path, "error", err)
			continue
		}
		cached++
	}

	s.log.Info("precache completed", "cached", cached, "requested", len(paths))
	return cached
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
