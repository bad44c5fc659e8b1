package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 20 * time.Second
)

const systemInstruction = `You write conversation material for a person talking to their future self about money.
Answer with a single JSON object with the keys conversation_prompts (ten questions),
key_insights, personality_traits (lists of short strings) and future_scenarios
(an object mapping keys such as "30_years" to lists of short strings).
Base every statement on the figures you are given. Do not invent amounts.`

// Models is the part of the genai client the generator calls.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOption applies a configuration option to the GeminiGenerator.
type GeminiOption func(*GeminiGenerator)

// WithModel sets the Gemini model name.
func WithModel(name string) GeminiOption {
	return func(g *GeminiGenerator) {
		if name != "" {
			g.model = name
		}
	}
}

// WithFallback sets the template used for the deterministic keys and when
// the model fails.
func WithFallback(t *TemplateGenerator) GeminiOption {
	return func(g *GeminiGenerator) {
		if t != nil {
			g.fallback = t
		}
	}
}

// WithGeminiTimeout bounds a single model call.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiGenerator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l logger.Logger) GeminiOption {
	return func(g *GeminiGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// GeminiGenerator asks a Gemini model for the free-text parts of the context.
// Identity, timeline and timestamps always come from the template, and the
// template text is used whenever the model call fails.
type GeminiGenerator struct {
	models   Models
	model    string
	fallback *TemplateGenerator
	timeout  time.Duration
	logger   logger.Logger
}

// NewGeminiGenerator creates a generator over models.
func NewGeminiGenerator(models Models, opts ...GeminiOption) (*GeminiGenerator, error) {
	if models == nil {
		return nil, ErrNilModels
	}
	g := &GeminiGenerator{
		models:   models,
		model:    defaultGeminiModel,
		fallback: NewTemplateGenerator(),
		timeout:  defaultGeminiTimeout,
		logger:   logger.Nop(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// NewGeminiGeneratorFromKey creates a genai client for the Gemini API.
func NewGeminiGeneratorFromKey(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGeminiGenerator(client.Models, opts...)
}

type modelAnswer struct {
	Prompts   []string            `json:"conversation_prompts"`
	Insights  []string            `json:"key_insights"`
	Traits    []string            `json:"personality_traits"`
	Scenarios map[string][]string `json:"future_scenarios"`
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, p model.FinancialProfile) (model.NarrativeContext, error) {
	out, err := g.fallback.Generate(ctx, p)
	if err != nil {
		return nil, err
	}

	answer, err := g.ask(ctx, &p)
	if err != nil {
		g.logger.Warn(ctx, "model narrative failed, using template",
			logger.String("session_id", p.SessionID),
			logger.String("model", g.model),
			logger.Error(err),
		)
		return out, nil
	}

	if len(answer.Prompts) > 0 {
		out[KeyPrompts] = answer.Prompts
	}
	if len(answer.Insights) > 0 {
		out[KeyInsights] = answer.Insights
	}
	if len(answer.Traits) > 0 {
		out[KeyTraits] = answer.Traits
	}
	if len(answer.Scenarios) > 0 {
		scenarios := make(map[string]any, len(answer.Scenarios))
		for k, v := range answer.Scenarios {
			scenarios[k] = v
		}
		out[KeyScenarios] = scenarios
	}
	return out, nil
}

func (g *GeminiGenerator) ask(ctx context.Context, p *model.FinancialProfile) (modelAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.7),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(g.prompt(p)), config)
	if err != nil {
		return modelAnswer{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return modelAnswer{}, ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```json"), "```")
	if strings.TrimSpace(text) == "" {
		return modelAnswer{}, ErrEmptyResponse
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return modelAnswer{}, fmt.Errorf("decode model answer: %w", err)
	}
	return answer, nil
}

func (g *GeminiGenerator) prompt(p *model.FinancialProfile) string {
	var b strings.Builder
	cur := g.fallback.currency
	fmt.Fprintf(&b, "Net worth: %s\n", FormatAmount(p.TotalNetWorth, cur))
	fmt.Fprintf(&b, "Savings rate: %.1f%%\n", p.SavingsRate)
	fmt.Fprintf(&b, "Risk profile: %s\n", p.RiskProfile)
	fmt.Fprintf(&b, "Discipline score: %.1f of 100\n", p.DisciplineScore)
	if p.CreditScore != nil {
		fmt.Fprintf(&b, "Credit score: %d\n", *p.CreditScore)
	}
	for _, class := range sortedKeys(p.InvestmentDiversification) {
		fmt.Fprintf(&b, "Allocation %s: %.1f%%\n", class, p.InvestmentDiversification[class])
	}
	for _, h := range p.Horizons() {
		proj := p.Projections[h]
		fmt.Fprintf(&b, "In %d years (age %d): %s, milestones: %s\n",
			h, proj.ProjectedAge, FormatAmount(proj.ProjectedNetWorth, cur), strings.Join(proj.Milestones, "; "))
	}
	fmt.Fprintf(&b, "Outlook: %s\n", p.Outlook)
	return b.String()
}

var _ Generator = (*GeminiGenerator)(nil)
