package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const flushTimeout = 10 * time.Second

// FlushClient delivers session snapshots to the watch-progress endpoint as
// idempotent full-state upserts. One delivery attempt per flush: a failed
// flush is simply superseded by the next one, which carries the same
// accumulated totals.
//
// Credentials are swapped by the identity broadcast (another goroutine), so
// they sit behind a mutex; everything else is immutable.
type FlushClient struct {
	client  *http.Client
	baseURL string
	log     *log.Helper

	credMu       sync.Mutex
	sessionToken string
	anonToken    string
}

// NewFlushClient creates a flush client against the service base URL.
func NewFlushClient(baseURL string, logger log.Logger) *FlushClient {
	return &FlushClient{
		client:  &http.Client{Timeout: flushTimeout},
		baseURL: baseURL,
		log:     log.NewHelper(logger),
	}
}

// SetCredentials swaps the token pair, typically in response to an identity
// broadcast after login or logout.
func (c *FlushClient) SetCredentials(sessionToken, anonToken string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	c.sessionToken = sessionToken
	c.anonToken = anonToken
}

// Listen applies identity events from the broadcaster until cancel.
func (c *FlushClient) Listen(events <-chan IdentityEvent) {
	go func() {
		for ev := range events {
			c.SetCredentials(ev.SessionToken, ev.AnonToken)
		}
	}()
}

// SaveProgress implements ProgressSink.
func (c *FlushClient) SaveProgress(snap Snapshot) error {
	body, err := json.Marshal(struct {
		ProgressSeconds float64 `json:"progressSeconds"`
		DurationSeconds float64 `json:"durationSeconds"`
		Completed       bool    `json:"completed"`
	}{
		ProgressSeconds: snap.FurthestSeconds(),
		DurationSeconds: snap.DurationSeconds,
		Completed:       snap.Completed,
	})
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/progress/%s", c.baseURL, snap.AssetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.credMu.Lock()
	session, anon := c.sessionToken, c.anonToken
	c.credMu.Unlock()
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	if anon != "" {
		req.Header.Set("X-Anon-Token", anon)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
