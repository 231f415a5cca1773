package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultUserAgent = "bikerelay/0.1"
	defaultTimeout   = 10 * time.Second
)

// Client talks to the campus bike-share backend HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// New builds a Client for the given backend base URL. A bare host:port is
// treated as http.
func New(rawURL string, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Replay re-issues a captured offline request: POST, JSON content type,
// bearer token, body byte-for-byte as captured.
//
// The returned status is the backend's answer for any completed exchange,
// 2xx or not; err is non-nil only for transport failures (offline,
// timeout). Callers decide retry policy from the pair.
func (c *Client) Replay(ctx context.Context, path, token string, body []byte) (int, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create replay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute replay request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}

// CreateSession opens a backend session for the given role and returns
// the session grant. No bearer token is required.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/create-session", "", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SwitchRole switches the session between driver and passenger.
func (c *Client) SwitchRole(ctx context.Context, token, newRole string) error {
	body := map[string]string{"new_role": newRole}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/switch-role", token, body, nil)
}

// EndSession terminates the session on the backend.
func (c *Client) EndSession(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/auth/end-session", token, nil, nil)
}

// UpdateLocation posts a position reading.
func (c *Client) UpdateLocation(ctx context.Context, token string, update LocationUpdate) error {
	return c.doJSON(ctx, http.MethodPost, "/api/location/update", token, update, nil)
}

// ReportBikeAvailability reports observed bike availability at a position.
func (c *Client) ReportBikeAvailability(ctx context.Context, token string, report AvailabilityReport) error {
	return c.doJSON(ctx, http.MethodPost, "/api/location/bike-availability", token, report, nil)
}

// SendEmergencyAlert raises an emergency alert.
func (c *Client) SendEmergencyAlert(ctx context.Context, token string, alert EmergencyAlert) error {
	return c.doJSON(ctx, http.MethodPost, "/api/emergency/alert", token, alert, nil)
}

// ActiveLocations returns the currently visible driver/passenger positions.
func (c *Client) ActiveLocations(ctx context.Context, token string) ([]ActiveLocation, error) {
	var locations []ActiveLocation
	if err := c.doJSON(ctx, http.MethodGet, "/api/location/active", token, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload, dest any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("backend url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", rawURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
