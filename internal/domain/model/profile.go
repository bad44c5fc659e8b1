package model

import (
	"maps"
	"slices"
	"time"
)

// RiskProfile classifies investment appetite.
type RiskProfile string

// Risk profiles.
const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// Projection is a forward net worth estimate for one horizon.
type Projection struct {
	HorizonYears      int      `json:"horizon_years"`
	ProjectedNetWorth float64  `json:"projected_net_worth"`
	ProjectedAge      int      `json:"projected_age"`
	FreedomScore      float64  `json:"freedom_score"`
	Milestones        []string `json:"milestones"`
}

// SourceIssue records why a source did not contribute to a profile.
type SourceIssue struct {
	SourceID SourceID     `json:"source_id"`
	Status   SourceStatus `json:"status"`
	Detail   string       `json:"detail,omitempty"`
}

// FinancialProfile is the aggregated, scored view of one session's finances.
// A profile is built once per run and replaced, never edited, by later runs.
type FinancialProfile struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	TotalNetWorth      float64            `json:"total_net_worth"`
	TotalAssets        float64            `json:"total_assets"`
	TotalLiabilities   float64            `json:"total_liabilities"`
	AssetBreakdown     map[string]float64 `json:"asset_breakdown"`
	LiabilityBreakdown map[string]float64 `json:"liability_breakdown"`

	InvestmentDiversification map[string]float64 `json:"investment_diversification"`
	SavingsRate               float64            `json:"savings_rate"`
	CreditScore               *int               `json:"credit_score,omitempty"`
	RetirementBalance         float64            `json:"retirement_balance"`
	StockNetInvested          float64            `json:"stock_net_invested"`

	RiskProfile     RiskProfile        `json:"risk_profile"`
	DisciplineScore float64            `json:"discipline_score"`
	Recommendations []string           `json:"recommendations"`
	Outlook         string             `json:"outlook"`
	Projections     map[int]Projection `json:"projections"`

	DataSourcesUsed  []SourceID    `json:"data_sources_used"`
	DataQualityScore float64       `json:"data_quality_score"`
	Issues           []SourceIssue `json:"issues,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewFinancialProfile returns a profile with every collection initialized.
func NewFinancialProfile(userID, sessionID string, createdAt time.Time) FinancialProfile {
	return FinancialProfile{
		UserID:                    userID,
		SessionID:                 sessionID,
		AssetBreakdown:            map[string]float64{},
		LiabilityBreakdown:        map[string]float64{},
		InvestmentDiversification: map[string]float64{},
		RiskProfile:               RiskConservative,
		Recommendations:           []string{},
		Projections:               map[int]Projection{},
		DataSourcesUsed:           []SourceID{},
		CreatedAt:                 createdAt,
	}
}

// UsedSource reports whether id contributed to the profile.
func (p *FinancialProfile) UsedSource(id SourceID) bool {
	return slices.Contains(p.DataSourcesUsed, id)
}

// Horizons returns the projection horizons in ascending order.
func (p *FinancialProfile) Horizons() []int {
	return slices.Sorted(maps.Keys(p.Projections))
}

// Clone returns a deep copy so that the caller can hand the profile to
// another owner without sharing maps or slices.
func (p FinancialProfile) Clone() FinancialProfile {
	c := p
	c.AssetBreakdown = maps.Clone(p.AssetBreakdown)
	c.LiabilityBreakdown = maps.Clone(p.LiabilityBreakdown)
	c.InvestmentDiversification = maps.Clone(p.InvestmentDiversification)
	if p.CreditScore != nil {
		score := *p.CreditScore
		c.CreditScore = &score
	}
	c.Recommendations = slices.Clone(p.Recommendations)
	if p.Projections != nil {
		c.Projections = make(map[int]Projection, len(p.Projections))
		for h, proj := range p.Projections {
			proj.Milestones = slices.Clone(proj.Milestones)
			c.Projections[h] = proj
		}
	}
	c.DataSourcesUsed = slices.Clone(p.DataSourcesUsed)
	c.Issues = slices.Clone(p.Issues)
	return c
}

// NarrativeContext is the conversational context derived from a profile.
// Values are strings, string slices or nested maps of those.
type NarrativeContext map[string]any
