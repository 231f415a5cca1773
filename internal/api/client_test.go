package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_ReproducesRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotContentType, gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	body := []byte(`{"latitude":7.5181,"longitude":4.5284,"accuracy":12.5,"timestamp":"2025-03-14T09:26:53.000Z"}`)
	status, err := c.Replay(context.Background(), "/api/location/update", "tok-1", body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/location/update", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, string(body), gotBody, "replay body must be byte-identical to the captured payload")
}

func TestReplay_RejectionIsNotAnError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	status, err := c.Replay(context.Background(), "/api/emergency/alert", "tok", []byte(`{}`))
	require.NoError(t, err, "a completed exchange is not a transport error")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestReplay_TransportFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // Refuse connections.

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Replay(context.Background(), "/api/location/update", "tok", []byte(`{}`))
	require.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/create-session", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "passenger", req.Role)

		json.NewEncoder(w).Encode(Session{AccessToken: "tok-xyz", Role: req.Role})
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	session, err := c.CreateSession(context.Background(), SessionRequest{Role: "passenger"})
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", session.AccessToken)
}

func TestEndSession_UsesDelete(t *testing.T) {
	var gotMethod, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.EndSession(context.Background(), "tok-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestActiveLocations(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/location/active", r.URL.Path)
		json.NewEncoder(w).Encode([]ActiveLocation{
			{Role: "driver", Latitude: 7.51, Longitude: 4.52},
			{Role: "passenger", Latitude: 7.52, Longitude: 4.53},
		})
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	locations, err := c.ActiveLocations(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "driver", locations[0].Role)
}

func TestDoJSON_ErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	c, err := New(backend.URL, time.Second)
	require.NoError(t, err)

	err = c.SwitchRole(context.Background(), "bad-token", "driver")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNew_BareHostPort(t *testing.T) {
	c, err := New("127.0.0.1:9000", 0)
	require.NoError(t, err)
	assert.Equal(t, "http", c.baseURL.Scheme)
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New("", 0)
	require.Error(t, err)
}
