// Package narrative derives the conversation context stored alongside a
// financial profile: prompts, insights, traits and per-horizon scenarios.
package narrative

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/Rhymond/go-money"
	"github.com/okian/findna/internal/domain/model"
)

// Generator builds a narrative context from a scored profile.
type Generator interface {
	Generate(ctx context.Context, p model.FinancialProfile) (model.NarrativeContext, error)
}

// Context keys.
const (
	KeySessionID = "session_id"
	KeyUserID    = "user_id"
	KeyPrompts   = "conversation_prompts"
	KeyInsights  = "key_insights"
	KeyTraits    = "personality_traits"
	KeyScenarios = "future_scenarios"
	KeyTimeline  = "timeline_contexts"
	KeyCreatedAt = "created_at"
)

const defaultCurrency = money.INR

// HorizonKey names a horizon inside the scenario and timeline maps.
func HorizonKey(years int) string {
	return fmt.Sprintf("%d_years", years)
}

// FormatAmount renders amount in currency with its symbol and grouping.
func FormatAmount(amount float64, currency string) string {
	return money.NewFromFloat(amount, currency).Display()
}

func knownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
