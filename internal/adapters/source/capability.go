// Package source wraps the external financial data capabilities behind
// fetchers with per-source timeout, retry, circuit breaking and caching.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/retry"
)

// Response is what a capability returns for one call. Exactly one of
// Payload and AuthLink is meaningful.
type Response struct {
	Payload  json.RawMessage
	AuthLink string
}

// Capability is one external data source.
type Capability interface {
	Fetch(ctx context.Context, sessionID string) (Response, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, sessionID string) (Response, error)

// Fetch calls f.
func (f CapabilityFunc) Fetch(ctx context.Context, sessionID string) (Response, error) {
	return f(ctx, sessionID)
}

// Provider hands out the capability serving a source.
type Provider interface {
	Capability(id model.SourceID) (Capability, error)
}

// Static returns a capability that always answers with payload.
func Static(payload []byte) Capability {
	resp, err := decodeToolText(payload)
	return CapabilityFunc(func(context.Context, string) (Response, error) {
		return resp, err
	})
}

var toolNames = map[model.SourceID]string{
	model.SourceNetWorth:          "fetch_net_worth",
	model.SourceCreditReport:      "fetch_credit_report",
	model.SourceRetirementFund:    "fetch_epf_details",
	model.SourceFundTransactions:  "fetch_mf_transactions",
	model.SourceBankTransactions:  "fetch_bank_transactions",
	model.SourceStockTransactions: "fetch_stock_transactions",
}

// ToolName returns the upstream tool that serves id.
func ToolName(id model.SourceID) (string, error) {
	name, ok := toolNames[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	return name, nil
}

// decodeToolText turns the text a tool produced into a Response. A document
// carrying a login_url is an authentication request, anything else must be
// a JSON object.
func decodeToolText(text []byte) (Response, error) {
	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		return Response{}, retry.Permanent(fmt.Errorf("%w: empty document", ErrMalformedPayload))
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return Response{}, retry.Permanent(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	if _, ok := doc.(map[string]any); !ok {
		return Response{}, retry.Permanent(fmt.Errorf("%w: expected an object", ErrMalformedPayload))
	}

	if link, err := jsonpath.Get("$.login_url", doc); err == nil {
		if s, ok := link.(string); ok && s != "" {
			return Response{AuthLink: s}, nil
		}
	}
	return Response{Payload: json.RawMessage(trimmed)}, nil
}
