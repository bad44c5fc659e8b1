// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"
)

// SourceID names one independently fetchable category of financial data.
type SourceID string

// Known sources.
const (
	SourceNetWorth          SourceID = "net_worth"
	SourceCreditReport      SourceID = "credit_report"
	SourceRetirementFund    SourceID = "retirement_fund"
	SourceFundTransactions  SourceID = "fund_transactions"
	SourceBankTransactions  SourceID = "bank_transactions"
	SourceStockTransactions SourceID = "stock_transactions"
)

// AllSources returns every source a full build expects, in a stable order.
func AllSources() []SourceID {
	return []SourceID{
		SourceNetWorth,
		SourceCreditReport,
		SourceRetirementFund,
		SourceFundTransactions,
		SourceBankTransactions,
		SourceStockTransactions,
	}
}

// Valid reports whether id is one of the known sources.
func (id SourceID) Valid() bool {
	return slices.Contains(AllSources(), id)
}

// SourceStatus is the outcome of fetching one source.
type SourceStatus string

// Source statuses.
const (
	StatusOK           SourceStatus = "ok"
	StatusError        SourceStatus = "error"
	StatusMissing      SourceStatus = "missing"
	StatusIncomplete   SourceStatus = "incomplete"
	StatusAuthRequired SourceStatus = "auth_required"
)

// ActionRequired is an out-of-band step the user must take before the
// source can be fetched again, such as following a login link.
type ActionRequired struct {
	Kind string `json:"kind"`
	Link string `json:"link,omitempty"`
}

// SourceResult is what a single fetch produced. Payload holds one of the
// typed payload records from payload.go when Status is StatusOK.
type SourceResult struct {
	SourceID    SourceID        `json:"source_id"`
	Status      SourceStatus    `json:"status"`
	Payload     any             `json:"-"`
	FetchedAt   time.Time       `json:"fetched_at"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	Action      *ActionRequired `json:"action,omitempty"`
	Attempts    int             `json:"attempts"`
	Latency     time.Duration   `json:"latency"`
}

// OK reports whether the fetch succeeded.
func (r SourceResult) OK() bool { return r.Status == StatusOK }

// SortResults orders results by source id in place.
func SortResults(results []SourceResult) {
	slices.SortFunc(results, func(a, b SourceResult) int {
		switch {
		case a.SourceID < b.SourceID:
			return -1
		case a.SourceID > b.SourceID:
			return 1
		default:
			return 0
		}
	})
}
