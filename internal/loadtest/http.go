package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

// client wraps http.Client with JSON helpers.
type client struct {
	http    *http.Client
	baseURL string
}

func (c *client) getJSON(ctx context.Context, path string, into any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, into)
}

func (c *client) postJSON(ctx context.Context, path string, body, into any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, into)
}

func (c *client) do(req *http.Request, into any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if into != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(body, into); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type buildRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type buildResponse struct {
	Persisted      bool              `json:"persisted"`
	PendingActions []json.RawMessage `json:"pending_actions"`
}

// submitBuilds posts every request through cfg.Workers concurrent clients.
func submitBuilds(ctx context.Context, c *client, workers int, reqs []buildRequest, stats *Stats) {
	var created, notPersisted, conflicts, failed, pending atomic.Int64

	ch := make(chan buildRequest, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range ch {
				var res buildResponse
				switch submitSingle(ctx, c, req, &res) {
				case outcomeCreated:
					created.Add(1)
				case outcomeNotPersisted:
					notPersisted.Add(1)
				case outcomeConflict:
					conflicts.Add(1)
				default:
					failed.Add(1)
				}
				pending.Add(int64(len(res.PendingActions)))
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, req := range reqs {
			select {
			case <-ctx.Done():
				return
			case ch <- req:
			}
		}
	}()
	wg.Wait()

	stats.Created = int(created.Load())
	stats.NotPersisted = int(notPersisted.Load())
	stats.Conflicts = int(conflicts.Load())
	stats.Failed = int(failed.Load())
	stats.PendingActions = int(pending.Load())
	stats.Submitted = stats.Created + stats.NotPersisted + stats.Conflicts + stats.Failed
}

func submitSingle(ctx context.Context, c *client, req buildRequest, res *buildResponse) outcome {
	status, err := c.postJSON(ctx, "/v1/profiles", req, res)
	if err != nil {
		return outcomeFailed
	}
	switch status {
	case http.StatusCreated:
		return outcomeCreated
	case http.StatusAccepted:
		return outcomeNotPersisted
	case http.StatusConflict:
		return outcomeConflict
	default:
		return outcomeFailed
	}
}
