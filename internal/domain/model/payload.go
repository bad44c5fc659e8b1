package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as reported by the upstream sources. Units may
// arrive as a JSON string or number.
type Amount struct {
	CurrencyCode string          `json:"currencyCode,omitempty"`
	Units        decimal.Decimal `json:"units"`
}

// AttributeValue is one labelled asset or liability entry.
type AttributeValue struct {
	NetWorthAttribute string  `json:"netWorthAttribute"`
	Value             *Amount `json:"value,omitempty"`
}

// NetWorthResponse lists assets and liabilities by attribute.
type NetWorthResponse struct {
	AssetValues        []AttributeValue `json:"assetValues"`
	LiabilityValues    []AttributeValue `json:"liabilityValues"`
	TotalNetWorthValue *Amount          `json:"totalNetWorthValue,omitempty"`
}

// NetWorthPayload is the net worth source payload.
type NetWorthPayload struct {
	NetWorthResponse *NetWorthResponse `json:"netWorthResponse" validate:"required"`
}

// CreditReport carries the bureau score when one exists.
type CreditReport struct {
	CreditScore *int `json:"creditScore,omitempty"`
}

// CreditReportPayload is the credit report source payload.
type CreditReportPayload struct {
	CreditReport *CreditReport `json:"creditReport" validate:"required"`
}

// EmployerRecord is one employer's contribution record inside a retirement account.
type EmployerRecord struct {
	EstablishmentName string           `json:"establishmentName,omitempty"`
	Balance           *decimal.Decimal `json:"epfBalance,omitempty"`
}

// RetirementAccount groups employer records under one account number.
type RetirementAccount struct {
	Employers []EmployerRecord `json:"establishmentDetails"`
}

// RetirementDetails lists retirement accounts.
type RetirementDetails struct {
	Accounts []RetirementAccount `json:"uanDetails"`
}

// RetirementPayload is the retirement fund source payload.
type RetirementPayload struct {
	Details *RetirementDetails `json:"epfDetails" validate:"required"`
}

// FundHolding is one mutual fund position.
type FundHolding struct {
	SchemeName   string          `json:"schemeName,omitempty"`
	Category     string          `json:"category"`
	CurrentValue decimal.Decimal `json:"currentValue"`
}

// FundTransactionsPayload is the fund transactions source payload.
type FundTransactionsPayload struct {
	Holdings []FundHolding `json:"holdings" validate:"required"`
}

// BankTransaction is a signed movement on an account. Positive is a credit.
type BankTransaction struct {
	Amount    decimal.Decimal `json:"amount"`
	Narration string          `json:"narration,omitempty"`
	Date      string          `json:"date,omitempty"`
}

// BankAccount holds an account's transactions.
type BankAccount struct {
	AccountNumber string            `json:"accountNumber,omitempty"`
	Bank          string            `json:"bank,omitempty"`
	Transactions  []BankTransaction `json:"transactions"`
}

// BankTransactionsPayload is the bank transactions source payload.
type BankTransactionsPayload struct {
	Accounts []BankAccount `json:"accounts" validate:"required"`
}

// Stock transaction sides.
const (
	StockBuy  = "BUY"
	StockSell = "SELL"
)

// StockTransaction is one equity trade.
type StockTransaction struct {
	ISIN     string          `json:"isin,omitempty"`
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Date     string          `json:"date,omitempty"`
}

// Value is quantity times price.
func (t StockTransaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// StockTransactionsPayload is the stock transactions source payload.
type StockTransactionsPayload struct {
	Transactions []StockTransaction `json:"stockTransactions" validate:"required"`
}

// NewPayload returns a pointer to the zero payload record for id, ready to be
// decoded into. It returns nil for unknown sources.
func NewPayload(id SourceID) any {
	switch id {
	case SourceNetWorth:
		return &NetWorthPayload{}
	case SourceCreditReport:
		return &CreditReportPayload{}
	case SourceRetirementFund:
		return &RetirementPayload{}
	case SourceFundTransactions:
		return &FundTransactionsPayload{}
	case SourceBankTransactions:
		return &BankTransactionsPayload{}
	case SourceStockTransactions:
		return &StockTransactionsPayload{}
	default:
		return nil
	}
}

// Masker is implemented by payloads that carry identifiers which must not
// be logged or stored in clear.
type Masker interface {
	MaskSensitive()
}

// MaskSensitive masks every account number down to its last four characters.
func (p *BankTransactionsPayload) MaskSensitive() {
	for i := range p.Accounts {
		p.Accounts[i].AccountNumber = MaskTail(p.Accounts[i].AccountNumber)
	}
}

const visibleTail = 4

// MaskTail replaces all but the last four characters of s with '*'. Short
// values are replaced entirely.
func MaskTail(s string) string {
	if s == "" {
		return s
	}
	if len(s) <= visibleTail {
		return "***MASKED***"
	}
	return strings.Repeat("*", len(s)-visibleTail) + s[len(s)-visibleTail:]
}
