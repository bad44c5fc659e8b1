// Package report renders a financial profile as markdown, and the markdown
// as HTML for the API or as styled text for a terminal.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/domain/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.md
var templates embed.FS

var profileTemplate = template.Must(template.ParseFS(templates, "templates/profile.md"))

const defaultWordWrap = 100

// Options tunes rendering.
type Options struct {
	// Currency is the ISO code amounts are shown in. Empty means INR.
	Currency string
	// Context, when set, adds its key insights to the report.
	Context model.NarrativeContext
}

type row struct {
	Name  string
	Value string
}

type projectionRow struct {
	Years      int
	Age        int
	NetWorth   string
	Freedom    string
	Milestones string
}

type view struct {
	SessionID        string
	UserID           string
	CreatedAt        string
	Outlook          string
	NetWorth         string
	Assets           string
	Liabilities      string
	SavingsRate      string
	CreditScore      string
	Retirement       string
	StockNetInvested string
	RiskProfile      model.RiskProfile
	Discipline       string
	DataQuality      string
	Allocation       []row
	AssetRows        []row
	LiabilityRows    []row
	Projections      []projectionRow
	Recommendations  []string
	Issues           []model.SourceIssue
	Insights         []string
}

// Markdown renders p.
func Markdown(p model.FinancialProfile, opts Options) (string, error) {
	cur := opts.Currency
	if cur == "" {
		cur = "INR"
	}
	amount := func(v float64) string { return narrative.FormatAmount(v, cur) }

	v := view{
		SessionID:        p.SessionID,
		UserID:           p.UserID,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
		Outlook:          p.Outlook,
		NetWorth:         amount(p.TotalNetWorth),
		Assets:           amount(p.TotalAssets),
		Liabilities:      amount(p.TotalLiabilities),
		SavingsRate:      percent(p.SavingsRate),
		CreditScore:      "n/a",
		Retirement:       amount(p.RetirementBalance),
		StockNetInvested: amount(p.StockNetInvested),
		RiskProfile:      p.RiskProfile,
		Discipline:       fmt.Sprintf("%.1f / 100", p.DisciplineScore),
		DataQuality:      percent(p.DataQualityScore),
		Allocation:       rows(p.InvestmentDiversification, percent),
		AssetRows:        rows(p.AssetBreakdown, amount),
		LiabilityRows:    rows(p.LiabilityBreakdown, amount),
		Recommendations:  p.Recommendations,
		Issues:           p.Issues,
		Insights:         stringsOf(opts.Context[narrative.KeyInsights]),
	}
	if p.CreditScore != nil {
		v.CreditScore = strconv.Itoa(*p.CreditScore)
	}
	for _, h := range p.Horizons() {
		proj := p.Projections[h]
		v.Projections = append(v.Projections, projectionRow{
			Years:      h,
			Age:        proj.ProjectedAge,
			NetWorth:   amount(proj.ProjectedNetWorth),
			Freedom:    fmt.Sprintf("%.1f", proj.FreedomScore),
			Milestones: strings.Join(proj.Milestones, "; "),
		})
	}

	var b strings.Builder
	if err := profileTemplate.Execute(&b, v); err != nil {
		return "", fmt.Errorf("render profile %s: %w", p.SessionID, err)
	}
	return b.String(), nil
}

// HTML converts markdown to an HTML fragment.
func HTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	renderer := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Terminal renders markdown for a terminal. An empty style picks one from
// the terminal background.
func Terminal(md, style string, width int) (string, error) {
	if width <= 0 {
		width = defaultWordWrap
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render terminal: %w", err)
	}
	return out, nil
}

func rows(m map[string]float64, format func(float64) string) []row {
	out := make([]row, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, row{Name: k, Value: format(m[k])})
	}
	return out
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// stringsOf accepts the list shapes a context takes before and after a
// JSON round trip.
func stringsOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
