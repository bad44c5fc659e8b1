package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/retry"
)

const (
	sessionHeader     = "Mcp-Session-Id"
	defaultMCPTimeout = 30 * time.Second
	maxResponseBytes  = 8 << 20
)

// MCPOption applies a configuration option to the MCPClient.
type MCPOption func(*MCPClient)

// WithHTTPClient sets the http.Client used for every call.
func WithHTTPClient(c *http.Client) MCPOption {
	return func(m *MCPClient) {
		if c != nil {
			m.client = c
		}
	}
}

// MCPClient calls the financial data tools of an MCP server over
// streamable HTTP. The build session id is forwarded as the MCP session.
type MCPClient struct {
	endpoint string
	client   *http.Client
	nextID   atomic.Int64
}

// NewMCPClient creates a client for the server at endpoint.
func NewMCPClient(endpoint string, opts ...MCPOption) (*MCPClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrEmptyEndpoint
	}
	c := &MCPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultMCPTimeout},
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Capability returns the capability calling the tool behind id.
func (c *MCPClient) Capability(id model.SourceID) (Capability, error) {
	tool, err := ToolName(id)
	if err != nil {
		return nil, err
	}
	return CapabilityFunc(func(ctx context.Context, sessionID string) (Response, error) {
		return c.CallTool(ctx, sessionID, tool)
	}), nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result *toolResult `json:"result"`
	Error  *rpcError   `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallTool invokes tool and decodes its first text content. Server errors
// and rate limiting are retryable, every other failure is permanent.
func (c *MCPClient) CallTool(ctx context.Context, sessionID, tool string) (Response, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: map[string]any{}},
	})
	if err != nil {
		return Response{}, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %w", ErrUpstream, tool, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: read body: %v", ErrUpstream, tool, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: status %d", ErrAuthRequired, tool, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return Response{}, fmt.Errorf("%w: %s: status %d", ErrUpstream, tool, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: status %d", ErrUpstream, tool, resp.StatusCode))
	}

	if isEventStream(resp.Header.Get("Content-Type")) {
		raw = firstEventData(raw)
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: %v", ErrMalformedPayload, tool, err))
	}
	if rpc.Error != nil {
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: rpc error %d: %s", ErrUpstream, tool, rpc.Error.Code, rpc.Error.Message))
	}
	if rpc.Result == nil {
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: no result", ErrMalformedPayload, tool))
	}

	text, ok := firstText(rpc.Result.Content)
	if rpc.Result.IsError {
		return Response{}, fmt.Errorf("%w: %s: tool error: %s", ErrUpstream, tool, text)
	}
	if !ok {
		return Response{}, retry.Permanent(fmt.Errorf("%w: %s: no text content", ErrMalformedPayload, tool))
	}
	return decodeToolText([]byte(text))
}

func firstText(content []toolContent) (string, bool) {
	for _, c := range content {
		if c.Type == "text" || c.Type == "" {
			return c.Text, true
		}
	}
	return "", false
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/event-stream"
}

// firstEventData returns the data of the first server-sent event.
func firstEventData(raw []byte) []byte {
	var data []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64<<10), maxResponseBytes)
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(data) > 0 {
			break
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(rest, " "))
		}
	}
	return []byte(strings.Join(data, "\n"))
}
