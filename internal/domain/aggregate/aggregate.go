// Package aggregate merges per-source fetch results into one financial profile.
//
// A run never fails: sources that are missing, errored or structurally
// invalid are recorded as issues and simply do not contribute.
package aggregate

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"github.com/shopspring/decimal"
)

// Category labels used when upstream data leaves one blank.
const (
	UnknownCategory = "Unknown"
	OtherCategory   = "Other"
)

var hundred = decimal.NewFromInt(100)

// Aggregator builds FinancialProfiles from source results.
type Aggregator struct {
	expected []model.SourceID
	validate *validator.Validate
	logger   logger.Logger
	now      func() time.Time
}

// New creates an Aggregator expecting every known source by default.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		expected: model.AllSources(),
		validate: validator.New(),
		logger:   logger.Nop(),
		now:      time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Aggregate merges results into a profile and returns it with the data
// quality score, the percentage of expected sources that contributed.
func (a *Aggregator) Aggregate(ctx context.Context, userID, sessionID string, results []model.SourceResult) (model.FinancialProfile, float64) {
	byID := make(map[model.SourceID]model.SourceResult, len(results))
	for _, r := range results {
		prev, seen := byID[r.SourceID]
		if !seen || (!prev.OK() && r.OK()) {
			byID[r.SourceID] = r
		}
	}

	p := model.NewFinancialProfile(userID, sessionID, a.now().UTC())
	var acc accumulator
	successful := 0

	for _, id := range a.expected {
		r, ok := byID[id]
		if !ok {
			p.Issues = append(p.Issues, model.SourceIssue{SourceID: id, Status: model.StatusMissing, Detail: "no result"})
			continue
		}
		if !r.OK() {
			p.Issues = append(p.Issues, model.SourceIssue{SourceID: id, Status: r.Status, Detail: r.ErrorDetail})
			continue
		}
		if err := a.check(id, r.Payload); err != nil {
			a.logger.Warn(ctx, "downgrading source payload to incomplete",
				logger.String("session_id", sessionID),
				logger.String("source_id", string(id)),
				logger.Error(err),
			)
			p.Issues = append(p.Issues, model.SourceIssue{SourceID: id, Status: model.StatusIncomplete, Detail: err.Error()})
			continue
		}
		acc.add(r.Payload)
		successful++
		p.DataSourcesUsed = append(p.DataSourcesUsed, id)
	}

	acc.fill(&p)

	var quality float64
	if len(a.expected) > 0 {
		quality = float64(successful) / float64(len(a.expected)) * 100
	}
	p.DataQualityScore = quality

	a.logger.Debug(ctx, "aggregated profile",
		logger.String("session_id", sessionID),
		logger.Int("sources_used", successful),
		logger.Float64("data_quality", quality),
	)
	return p, quality
}

// check verifies that payload is the record expected for id and carries
// its required top-level fields.
func (a *Aggregator) check(id model.SourceID, payload any) error {
	if payload == nil {
		return ErrMissingPayload
	}
	want := model.NewPayload(id)
	if want == nil || reflect.TypeOf(want) != reflect.TypeOf(payload) {
		return fmt.Errorf("%w: %T for %s", ErrUnexpectedPayload, payload, id)
	}
	if reflect.ValueOf(payload).IsNil() {
		return ErrMissingPayload
	}
	if err := a.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// accumulator keeps exact decimal sums until the profile is filled.
type accumulator struct {
	assets        map[string]decimal.Decimal
	liabilities   map[string]decimal.Decimal
	totalAssets   decimal.Decimal
	totalLiabs    decimal.Decimal
	creditScore   *int
	retirement    decimal.Decimal
	holdings      map[string]decimal.Decimal
	holdingsTotal decimal.Decimal
	income        decimal.Decimal
	expenses      decimal.Decimal
	stockBought   decimal.Decimal
	stockSold     decimal.Decimal
}

func (acc *accumulator) add(payload any) {
	switch v := payload.(type) {
	case *model.NetWorthPayload:
		acc.addNetWorth(v.NetWorthResponse)
	case *model.CreditReportPayload:
		if v.CreditReport.CreditScore != nil {
			score := *v.CreditReport.CreditScore
			acc.creditScore = &score
		}
	case *model.RetirementPayload:
		for _, account := range v.Details.Accounts {
			for _, employer := range account.Employers {
				if employer.Balance != nil {
					acc.retirement = acc.retirement.Add(*employer.Balance)
				}
			}
		}
	case *model.FundTransactionsPayload:
		acc.holdings = make(map[string]decimal.Decimal)
		for _, h := range v.Holdings {
			category := strings.TrimSpace(h.Category)
			if category == "" {
				category = OtherCategory
			}
			acc.holdings[category] = acc.holdings[category].Add(h.CurrentValue)
			acc.holdingsTotal = acc.holdingsTotal.Add(h.CurrentValue)
		}
	case *model.BankTransactionsPayload:
		for _, account := range v.Accounts {
			for _, tx := range account.Transactions {
				switch {
				case tx.Amount.IsPositive():
					acc.income = acc.income.Add(tx.Amount)
				case tx.Amount.IsNegative():
					acc.expenses = acc.expenses.Add(tx.Amount.Abs())
				}
			}
		}
	case *model.StockTransactionsPayload:
		for _, tx := range v.Transactions {
			switch strings.ToUpper(tx.Type) {
			case model.StockBuy:
				acc.stockBought = acc.stockBought.Add(tx.Value())
			case model.StockSell:
				acc.stockSold = acc.stockSold.Add(tx.Value())
			}
		}
	}
}

func (acc *accumulator) addNetWorth(resp *model.NetWorthResponse) {
	acc.assets = make(map[string]decimal.Decimal)
	acc.liabilities = make(map[string]decimal.Decimal)
	for _, entry := range resp.AssetValues {
		category, amount := entryAmount(entry)
		acc.assets[category] = acc.assets[category].Add(amount)
		acc.totalAssets = acc.totalAssets.Add(amount)
	}
	for _, entry := range resp.LiabilityValues {
		category, amount := entryAmount(entry)
		acc.liabilities[category] = acc.liabilities[category].Add(amount)
		acc.totalLiabs = acc.totalLiabs.Add(amount)
	}
}

func entryAmount(entry model.AttributeValue) (string, decimal.Decimal) {
	category := strings.TrimSpace(entry.NetWorthAttribute)
	if category == "" {
		category = UnknownCategory
	}
	if entry.Value == nil {
		return category, decimal.Zero
	}
	return category, entry.Value.Units
}

// fill writes the accumulated sums onto p. Net worth is derived from the
// rounded totals so that it equals assets minus liabilities exactly.
func (acc *accumulator) fill(p *model.FinancialProfile) {
	for category, amount := range acc.assets {
		p.AssetBreakdown[category] = amount.InexactFloat64()
	}
	for category, amount := range acc.liabilities {
		p.LiabilityBreakdown[category] = amount.InexactFloat64()
	}
	p.TotalAssets = acc.totalAssets.InexactFloat64()
	p.TotalLiabilities = acc.totalLiabs.InexactFloat64()
	p.TotalNetWorth = p.TotalAssets - p.TotalLiabilities

	if acc.creditScore != nil {
		score := *acc.creditScore
		p.CreditScore = &score
	}
	p.RetirementBalance = acc.retirement.InexactFloat64()

	if acc.holdingsTotal.IsPositive() {
		for category, amount := range acc.holdings {
			p.InvestmentDiversification[category] = amount.Div(acc.holdingsTotal).Mul(hundred).InexactFloat64()
		}
	}

	if acc.income.IsPositive() {
		p.SavingsRate = acc.income.Sub(acc.expenses).Div(acc.income).Mul(hundred).InexactFloat64()
	}

	p.StockNetInvested = acc.stockBought.Sub(acc.stockSold).InexactFloat64()
}
