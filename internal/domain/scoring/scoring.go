// Package scoring turns an aggregated financial profile into a risk class,
// a discipline score, recommendations, an outlook and wealth projections.
// Everything here is pure and deterministic.
package scoring

import (
	"math"
	"slices"
	"strings"

	"github.com/okian/findna/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultAnnualReturn    = 0.08
	defaultBaselineAge     = 30
	defaultIncomeRatio     = 0.15
	defaultIncomeFloor     = 500_000
	defaultFreedomTarget   = 10_000_000
	defaultWealthMilestone = 50_000_000
	maxScoreValue          = 100
)

// DefaultHorizons are the projection horizons every profile carries.
func DefaultHorizons() []int { return []int{30, 50, 60} }

// Recommendation texts, in rule order.
const (
	RecommendIncreaseSavings = "Increase savings rate to at least 20% of income"
	RecommendDiversify       = "Diversify investments across more asset classes"
	RecommendImproveCredit   = "Focus on improving credit score through timely payments"
	RecommendStructuredPlan  = "Implement a structured financial plan with clear goals"
	RecommendMaintain        = "Maintain current financial discipline and consider wealth management"
)

// Outlook tiers.
const (
	OutlookExcellent      = "Excellent financial trajectory with strong wealth-building potential"
	OutlookGood           = "Good financial foundation with opportunities for optimization"
	OutlookModerate       = "Moderate financial health requiring strategic improvements"
	OutlookNeedsAttention = "Financial situation needs significant attention and restructuring"
)

// Milestone texts.
const (
	MilestoneAssetBase    = "Achieved substantial asset base"
	MilestoneIndependence = "Building towards financial independence"
	MilestoneRetirement   = "Approaching retirement readiness"
	MilestoneFreedom      = "Achieved financial independence"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAnnualReturn sets the assumed yearly return. Zero is allowed and
// switches savings accumulation to a linear sum.
func WithAnnualReturn(r float64) Option {
	return func(e *Engine) {
		if r >= 0 {
			e.annualReturn = r
		}
	}
}

// WithBaselineAge sets the age projections start from.
func WithBaselineAge(age int) Option {
	return func(e *Engine) {
		if age > 0 {
			e.baselineAge = age
		}
	}
}

// WithIncomeEstimate sets the net worth ratio and floor used to estimate income.
func WithIncomeEstimate(ratio, floor float64) Option {
	return func(e *Engine) {
		if ratio > 0 {
			e.incomeRatio = ratio
		}
		if floor >= 0 {
			e.incomeFloor = floor
		}
	}
}

// WithFreedomTarget sets the wealth that maps to a freedom score of 100.
func WithFreedomTarget(target float64) Option {
	return func(e *Engine) {
		if target > 0 {
			e.freedomTarget = target
		}
	}
}

// WithWealthMilestone sets the wealth above which the independence milestone fires.
func WithWealthMilestone(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.wealthMilestone = v
		}
	}
}

// WithHorizons sets the projection horizons. Non-positive and duplicate
// values are dropped.
func WithHorizons(horizons []int) Option {
	return func(e *Engine) {
		var hs []int
		for _, h := range horizons {
			if h > 0 && !slices.Contains(hs, h) {
				hs = append(hs, h)
			}
		}
		if len(hs) > 0 {
			slices.Sort(hs)
			e.horizons = hs
		}
	}
}

// Engine holds the projection assumptions. The zero value is not usable;
// call NewEngine.
type Engine struct {
	annualReturn    float64
	baselineAge     int
	incomeRatio     float64
	incomeFloor     float64
	freedomTarget   float64
	wealthMilestone float64
	horizons        []int
}

// NewEngine creates an engine with the default assumptions.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		annualReturn:    defaultAnnualReturn,
		baselineAge:     defaultBaselineAge,
		incomeRatio:     defaultIncomeRatio,
		incomeFloor:     defaultIncomeFloor,
		freedomTarget:   defaultFreedomTarget,
		wealthMilestone: defaultWealthMilestone,
		horizons:        DefaultHorizons(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Horizons returns the configured horizons.
func (e *Engine) Horizons() []int { return slices.Clone(e.horizons) }

// Input is the subset of a profile the scoring rules read.
type Input struct {
	SavingsRate      float64
	Diversification  map[string]float64
	CreditScore      *int
	TotalNetWorth    float64
	TotalLiabilities float64
}

// InputFrom extracts scoring inputs from a profile.
func InputFrom(p *model.FinancialProfile) Input {
	return Input{
		SavingsRate:      p.SavingsRate,
		Diversification:  p.InvestmentDiversification,
		CreditScore:      p.CreditScore,
		TotalNetWorth:    p.TotalNetWorth,
		TotalLiabilities: p.TotalLiabilities,
	}
}

// Apply returns a copy of p with risk, discipline, recommendations, outlook
// and projections filled in. p itself is left untouched.
func (e *Engine) Apply(p model.FinancialProfile) model.FinancialProfile {
	out := p.Clone()
	in := InputFrom(&out)

	out.RiskProfile = Risk(in.Diversification, in.SavingsRate)
	out.DisciplineScore = Discipline(in)
	out.Recommendations = Recommendations(in, out.DisciplineScore)
	out.Outlook = Outlook(out.DisciplineScore)
	out.Projections = e.ProjectAll(out.TotalNetWorth, out.SavingsRate)
	return out
}

// Risk classifies the profile from diversification and savings rate.
func Risk(diversification map[string]float64, savingsRate float64) model.RiskProfile {
	switch {
	case hasEquity(diversification) && savingsRate > 15:
		return model.RiskAggressive
	case len(diversification) >= 2 && savingsRate > 10:
		return model.RiskModerate
	default:
		return model.RiskConservative
	}
}

func hasEquity(diversification map[string]float64) bool {
	for category := range diversification {
		if strings.Contains(strings.ToLower(category), "equity") {
			return true
		}
	}
	return false
}

// Discipline computes the additive 0-100 discipline score.
func Discipline(in Input) float64 {
	score := savingsPoints(in.SavingsRate) +
		diversificationPoints(len(in.Diversification)) +
		creditPoints(in.CreditScore) +
		leveragePoints(in.TotalNetWorth, in.TotalLiabilities)
	return math.Max(0, math.Min(maxScoreValue, score))
}

func savingsPoints(rate float64) float64 {
	switch {
	case rate > 20:
		return 40
	case rate > 10:
		return 25
	case rate > 0:
		return 15
	default:
		return 0
	}
}

func diversificationPoints(categories int) float64 {
	switch {
	case categories >= 3:
		return 30
	case categories >= 2:
		return 20
	case categories >= 1:
		return 10
	default:
		return 0
	}
}

func creditPoints(score *int) float64 {
	if score == nil {
		return 0
	}
	switch {
	case *score > 750:
		return 20
	case *score > 650:
		return 15
	case *score > 550:
		return 10
	default:
		return 0
	}
}

func leveragePoints(netWorth, liabilities float64) float64 {
	if liabilities == 0 {
		return 10
	}
	if liabilities < 0 {
		return 0
	}
	ratio := netWorth / liabilities
	switch {
	case ratio > 3:
		return 10
	case ratio > 2:
		return 7
	case ratio > 1:
		return 5
	default:
		return 0
	}
}

// Recommendations evaluates the rules in fixed order. When none fires a
// single maintenance recommendation is returned.
func Recommendations(in Input, discipline float64) []string {
	var recs []string
	if in.SavingsRate < 20 {
		recs = append(recs, RecommendIncreaseSavings)
	}
	if len(in.Diversification) < 3 {
		recs = append(recs, RecommendDiversify)
	}
	if in.CreditScore != nil && *in.CreditScore < 750 {
		recs = append(recs, RecommendImproveCredit)
	}
	if discipline < 60 {
		recs = append(recs, RecommendStructuredPlan)
	}
	if len(recs) == 0 {
		recs = append(recs, RecommendMaintain)
	}
	return recs
}

// Outlook maps a discipline score to its narrative tier.
func Outlook(discipline float64) string {
	switch {
	case discipline >= 80:
		return OutlookExcellent
	case discipline >= 60:
		return OutlookGood
	case discipline >= 40:
		return OutlookModerate
	default:
		return OutlookNeedsAttention
	}
}

// ProjectAll projects every configured horizon.
func (e *Engine) ProjectAll(netWorth, savingsRate float64) map[int]model.Projection {
	out := make(map[int]model.Projection, len(e.horizons))
	for _, h := range e.horizons {
		out[h] = e.Project(netWorth, savingsRate, h)
	}
	return out
}

// Project estimates wealth after years of compound growth plus savings.
func (e *Engine) Project(netWorth, savingsRate float64, years int) model.Projection {
	income := math.Max(netWorth*e.incomeRatio, e.incomeFloor)
	annualSavings := income * savingsRate / 100

	growth := math.Pow(1+e.annualReturn, float64(years))
	futureWealth := netWorth * growth

	var futureSavings float64
	if e.annualReturn == 0 {
		futureSavings = annualSavings * float64(years)
	} else {
		futureSavings = annualSavings * ((growth - 1) / e.annualReturn)
	}
	total := futureWealth + futureSavings

	freedom := math.Max(0, math.Min(total/e.freedomTarget*100, maxScoreValue))

	milestones := []string{}
	if years >= 10 {
		milestones = append(milestones, MilestoneAssetBase)
	}
	if years >= 20 {
		milestones = append(milestones, MilestoneIndependence)
	}
	if years >= 30 {
		milestones = append(milestones, MilestoneRetirement)
	}
	if total > e.wealthMilestone {
		milestones = append(milestones, MilestoneFreedom)
	}

	return model.Projection{
		HorizonYears:      years,
		ProjectedNetWorth: total,
		ProjectedAge:      e.baselineAge + years,
		FreedomScore:      freedom,
		Milestones:        milestones,
	}
}
