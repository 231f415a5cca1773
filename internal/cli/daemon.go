package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oaubike/relay/internal/proxy"
)

// controlTimeout bounds a control exchange with the daemon.
const controlTimeout = 30 * time.Second

// postControl sends one control message to a running daemon and returns
// the raw response body.
func postControl(addr string, msg any) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode control message: %w", err)
	}

	client := &http.Client{Timeout: controlTimeout}
	url := "http://" + addr + proxy.ControlPath
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reach relay at %s: %w", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
