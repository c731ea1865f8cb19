package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// maxBodyBytes caps the feed response size. The real feed is a handful
// of records; anything near this limit is a misbehaving endpoint.
const maxBodyBytes = 1 << 20

type Config struct {
	URL        string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// Client fetches the raw batch list from the production feed. The feed
// publishes either a JSON array of records or a single record object.
type Client struct {
	cfg       Config
	http      *http.Client
	validator *Validator
	logger    *zap.Logger
}

func NewClient(cfg Config, validator *Validator, logger *zap.Logger) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		validator: validator,
		logger:    logger,
	}
}

// FetchRawBatches retrieves the feed and returns at most five decoded
// entries. Transport errors and retryable statuses back off linearly
// between attempts; auth and not-found statuses and malformed payloads
// fail immediately since retrying cannot fix them.
func (c *Client) FetchRawBatches(ctx context.Context) ([]map[string]any, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				metrics.FetchRequestsTotal.WithLabelValues("failure").Inc()
				return nil, types.NewConnectionFailure("cloud", "fetch batches", ctx.Err())
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt-1)):
			}
		}

		entries, retryable, err := c.fetchOnce(ctx)
		if err == nil {
			metrics.FetchRequestsTotal.WithLabelValues("success").Inc()
			return entries, nil
		}
		lastErr = err
		if !retryable {
			metrics.FetchRequestsTotal.WithLabelValues("failure").Inc()
			return nil, err
		}

		c.logger.Warn("Batch feed request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Attempts),
			zap.Error(err))
	}

	metrics.FetchRequestsTotal.WithLabelValues("failure").Inc()
	return nil, types.NewConnectionFailure("cloud", "fetch batches", lastErr).
		WithDetail("attempts", c.cfg.Attempts)
}

// TestConnection probes the feed endpoint once. Any HTTP answer counts
// as reachable; the operation path deals with bad payloads later.
func (c *Client) TestConnection(ctx context.Context) error {
	if c.cfg.URL == "" {
		return types.NewConnectionFailure("cloud", "test connection",
			fmt.Errorf("feed url not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return types.NewConnectionFailure("cloud", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewConnectionFailure("cloud", "test connection", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()

	return nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]map[string]any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, false, types.NewConnectionFailure("cloud", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, types.NewConnectionFailure("cloud", "fetch batches", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case noRetryStatus(resp.StatusCode):
		return nil, false, types.NewConnectionFailure("cloud", "fetch batches",
			fmt.Errorf("feed returned status %d", resp.StatusCode)).
			WithDetail("status", resp.StatusCode)
	default:
		return nil, true, types.NewConnectionFailure("cloud", "fetch batches",
			fmt.Errorf("feed returned status %d", resp.StatusCode)).
			WithDetail("status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, types.NewConnectionFailure("cloud", "read response", err)
	}

	entries, err := c.decode(body)
	if err != nil {
		return nil, false, err
	}
	return entries, false, nil
}

// noRetryStatus marks statuses where a retry with the same request is
// pointless.
func noRetryStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// decode normalizes the two feed shapes into a list of entry objects,
// caps the list at the slot count and schema-checks every entry.
func (c *Client) decode(body []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, types.NewDataValidationFailure("cloud", "decode response", err)
	}

	var raw []any
	switch v := payload.(type) {
	case []any:
		raw = v
	case map[string]any:
		raw = []any{v}
	default:
		return nil, types.NewDataValidationFailure("cloud", "decode response",
			fmt.Errorf("unexpected top-level JSON type %T", payload))
	}

	if len(raw) > registers.SlotCount {
		c.logger.Warn("Feed returned more records than slots, keeping the first",
			zap.Int("received", len(raw)),
			zap.Int("kept", registers.SlotCount))
		raw = raw[:registers.SlotCount]
	}

	entries := make([]map[string]any, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			continue
		}
		obj, ok := item.(map[string]any)
		if !ok {
			c.logger.Warn("Skipping non-object feed entry",
				zap.Int("position", i))
			continue
		}
		if err := c.validator.ValidateEntry(obj); err != nil {
			c.logger.Warn("Skipping feed entry rejected by schema",
				zap.Int("position", i),
				zap.Error(err))
			continue
		}
		entries = append(entries, obj)
	}
	return entries, nil
}
