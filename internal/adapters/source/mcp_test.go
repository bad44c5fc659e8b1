package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/findna/internal/adapters/source"
	"github.com/okian/findna/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolCall struct {
	Method string `json:"method"`
	Params struct {
		Name string `json:"name"`
	} `json:"params"`
}

func toolReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		},
	})
}

func TestMCPClient_CallTool(t *testing.T) {
	var seen toolCall
	var session string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session = r.Header.Get("Mcp-Session-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		toolReply(w, `{"creditReport":{"creditScore":781}}`)
	}))
	defer srv.Close()

	client, err := source.NewMCPClient(srv.URL)
	require.NoError(t, err)
	c, err := client.Capability(model.SourceCreditReport)
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), "session-42")
	require.NoError(t, err)

	assert.Equal(t, "tools/call", seen.Method)
	assert.Equal(t, "fetch_credit_report", seen.Params.Name)
	assert.Equal(t, "session-42", session)
	assert.JSONEq(t, `{"creditReport":{"creditScore":781}}`, string(resp.Payload))
	assert.Empty(t, resp.AuthLink)
}

func TestMCPClient_LoginURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		toolReply(w, `{"status":"login_required","login_url":"http://localhost:8080/mockWebPage?sessionId=s1"}`)
	}))
	defer srv.Close()

	client, err := source.NewMCPClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.CallTool(context.Background(), "s1", "fetch_net_worth")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/mockWebPage?sessionId=s1", resp.AuthLink)
	assert.Nil(t, resp.Payload)
}

func TestMCPClient_EventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		body, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]any{"content": []map[string]any{{"type": "text", "text": `{"holdings":[]}`}}},
		})
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
	}))
	defer srv.Close()

	client, err := source.NewMCPClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.CallTool(context.Background(), "s1", "fetch_mf_transactions")
	require.NoError(t, err)
	assert.JSONEq(t, `{"holdings":[]}`, string(resp.Payload))
}

func TestMCPClient_StatusHandling(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantHits int32
		want     model.SourceStatus
	}{
		{"server error is retried", http.StatusBadGateway, 3, model.StatusError},
		{"rate limit is retried", http.StatusTooManyRequests, 3, model.StatusError},
		{"bad request is not retried", http.StatusBadRequest, 1, model.StatusError},
		{"unauthorized asks for login", http.StatusUnauthorized, 1, model.StatusAuthRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client, err := source.NewMCPClient(srv.URL)
			require.NoError(t, err)
			c, err := client.Capability(model.SourceNetWorth)
			require.NoError(t, err)
			f, err := source.NewFetcher(model.SourceNetWorth, c,
				source.WithRetryPolicy(fastPolicy()),
				source.WithBreaker(source.BreakerSettings{Disabled: true}),
				source.WithTimeout(5*time.Second),
			)
			require.NoError(t, err)

			res := f.Fetch(context.Background(), "s1")
			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, tc.wantHits, hits.Load())
		})
	}
}

func TestMCPClient_Errors(t *testing.T) {
	_, err := source.NewMCPClient("  ")
	assert.ErrorIs(t, err, source.ErrEmptyEndpoint)

	client, err := source.NewMCPClient("http://localhost")
	require.NoError(t, err)
	_, err = client.Capability("unknown")
	assert.ErrorIs(t, err, source.ErrUnknownSource)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"unknown tool"}}`))
	}))
	defer srv.Close()

	client, err = source.NewMCPClient(srv.URL)
	require.NoError(t, err)
	_, err = client.CallTool(context.Background(), "s1", "fetch_nothing")
	assert.True(t, errors.Is(err, source.ErrUpstream))
	assert.Contains(t, err.Error(), "unknown tool")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		toolReply(w, "not json")
	}))
	defer bad.Close()

	client, err = source.NewMCPClient(bad.URL)
	require.NoError(t, err)
	_, err = client.CallTool(context.Background(), "s1", "fetch_net_worth")
	assert.ErrorIs(t, err, source.ErrMalformedPayload)
}
