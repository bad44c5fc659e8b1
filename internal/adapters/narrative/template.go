package narrative

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/okian/findna/internal/domain/model"
)

const (
	insightDiscipline      = 80.0
	insightSavingsRate     = 25.0
	insightDiversification = 3
)

var conversationPrompts = []string{
	"What financial decisions are you most proud of?",
	"How did your investment strategy evolve over the years?",
	"What would you tell your younger self about money management?",
	"How did you navigate major market downturns?",
	"What role did financial discipline play in your wealth building?",
	"How did you balance risk and security in your investments?",
	"What unexpected financial challenges did you overcome?",
	"How did your relationship with money change over time?",
	"What legacy are you building for future generations?",
	"How did you keep your financial goals through life changes?",
}

var traitsByRisk = map[model.RiskProfile][]string{
	model.RiskAggressive:   {"Calculated risk-taker", "Growth-oriented", "Confident in a long-term vision"},
	model.RiskModerate:     {"Balanced approach", "Strategic thinker", "Adapts to changing conditions"},
	model.RiskConservative: {"Prudent and cautious", "Security-focused", "Patient wealth builder"},
}

var scenariosByHorizon = map[int][]string{
	30: {
		"Reached major financial milestones",
		"Came through several market cycles",
		"Built lasting security for the family",
	},
	50: {
		"Reached financial independence",
		"Mentors others on building wealth",
		"Enjoys the results of long-term planning",
	},
	60: {
		"Established legacy wealth",
		"Funds philanthropic work",
		"Carries decades of financial experience",
	},
}

// Option applies a configuration option to the TemplateGenerator.
type Option func(*TemplateGenerator)

// WithCurrency sets the ISO code amounts are formatted in. Unknown codes
// are ignored.
func WithCurrency(code string) Option {
	return func(g *TemplateGenerator) {
		if knownCurrency(code) {
			g.currency = code
		}
	}
}

// WithClock sets the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(g *TemplateGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// TemplateGenerator builds the context from fixed texts and profile figures.
// It never fails.
type TemplateGenerator struct {
	currency string
	now      func() time.Time
}

// NewTemplateGenerator creates a template generator.
func NewTemplateGenerator(opts ...Option) *TemplateGenerator {
	g := &TemplateGenerator{
		currency: defaultCurrency,
		now:      time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate implements Generator.
func (g *TemplateGenerator) Generate(ctx context.Context, p model.FinancialProfile) (model.NarrativeContext, error) {
	horizons := p.Horizons()

	scenarios := make(map[string]any, len(horizons))
	timeline := make(map[string]any, len(horizons))
	for _, h := range horizons {
		if texts, ok := scenariosByHorizon[h]; ok {
			scenarios[HorizonKey(h)] = slices.Clone(texts)
		}
		timeline[HorizonKey(h)] = g.timelineEntry(p.Projections[h])
	}

	return model.NarrativeContext{
		KeySessionID: p.SessionID,
		KeyUserID:    p.UserID,
		KeyPrompts:   slices.Clone(conversationPrompts),
		KeyInsights:  insights(&p),
		KeyTraits:    traits(&p),
		KeyScenarios: scenarios,
		KeyTimeline:  timeline,
		KeyCreatedAt: g.now().UTC().Format(time.RFC3339),
	}, nil
}

func (g *TemplateGenerator) timelineEntry(proj model.Projection) map[string]any {
	return map[string]any{
		"projected_net_worth": FormatAmount(proj.ProjectedNetWorth, g.currency),
		"projected_age":       strconv.Itoa(proj.ProjectedAge),
		"freedom_score":       fmt.Sprintf("%.1f", proj.FreedomScore),
		"milestones":          slices.Clone(proj.Milestones),
	}
}

func insights(p *model.FinancialProfile) []string {
	out := []string{}
	if p.DisciplineScore > insightDiscipline {
		out = append(out, "Exceptional financial discipline was the cornerstone of your wealth")
	}
	if p.SavingsRate > insightSavingsRate {
		out = append(out, "An aggressive early savings rate compounded into substantial growth")
	}
	if len(p.InvestmentDiversification) >= insightDiversification {
		out = append(out, "A diversified portfolio protected and grew your wealth steadily")
	}
	return out
}

func traits(p *model.FinancialProfile) []string {
	base, ok := traitsByRisk[p.RiskProfile]
	if !ok {
		base = traitsByRisk[model.RiskModerate]
	}
	out := slices.Clone(base)
	if p.DisciplineScore > insightDiscipline {
		out = append(out, "Highly disciplined and goal-oriented")
	}
	return out
}

var _ Generator = (*TemplateGenerator)(nil)
