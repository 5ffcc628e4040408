// Package delegation scores which agent persona should handle the
// conversation, and gates autonomous agent switches behind a strict
// confidence policy.
package delegation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dotsetgreg/parley/pkg/analysis"
	"github.com/dotsetgreg/parley/pkg/analytics"
)

// Context-match factor names.
const (
	FactorDomainAffinity     = "domain_affinity"
	FactorCapabilityCoverage = "capability_coverage"
	FactorComplexityFit      = "complexity_fit"
	FactorIntentOverlap      = "intent_overlap"
	FactorGoalClarity        = "goal_clarity"
)

const suggestionCutoff = 0.55

// AgentProfile describes one persona available for delegation.
type AgentProfile struct {
	Name         string
	Domains      []string
	Capabilities []string
	Complexity   []analysis.Complexity
	Intents      []string
}

// Suggestion is the advisor's scored output. A zero-confidence result
// with empty agents is the valid "no opinion" steady state.
type Suggestion struct {
	SuggestedAgents []string
	Reasoning       []string
	Confidence      float64
	ContextMatch    map[string]float64
}

// Advisor ranks a fixed roster against the tracker's current scenario
// context and interaction pattern.
type Advisor struct {
	tracker *analytics.Tracker
	roster  []AgentProfile
}

func NewAdvisor(tracker *analytics.Tracker, roster []AgentProfile) *Advisor {
	return &Advisor{tracker: tracker, roster: roster}
}

// Suggestions scores the roster. When either the scenario context or the
// interaction pattern is missing the advisor fails closed: zero
// confidence, no agents, one reasoning line naming the gap.
func (a *Advisor) Suggestions() Suggestion {
	scenario := a.tracker.Scenario()
	pattern := a.tracker.Pattern()
	if scenario == nil || pattern == nil {
		return Suggestion{
			Reasoning:    []string{"insufficient context: scenario context and interaction patterns are both required"},
			Confidence:   0,
			ContextMatch: map[string]float64{},
		}
	}
	if len(a.roster) == 0 {
		return Suggestion{
			Reasoning:    []string{"insufficient context: no agents registered for delegation"},
			Confidence:   0,
			ContextMatch: map[string]float64{},
		}
	}

	type ranked struct {
		profile    AgentProfile
		factors    map[string]float64
		confidence float64
	}

	candidates := make([]ranked, 0, len(a.roster))
	for _, profile := range a.roster {
		factors := scoreAgent(profile, scenario, pattern)
		candidates = append(candidates, ranked{
			profile:    profile,
			factors:    factors,
			confidence: meanFactor(factors),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})

	best := candidates[0]
	suggestion := Suggestion{
		Confidence:   best.confidence,
		ContextMatch: best.factors,
		Reasoning:    reasoningFor(best.profile, best.factors, scenario),
	}
	for _, c := range candidates {
		if c.confidence >= suggestionCutoff {
			suggestion.SuggestedAgents = append(suggestion.SuggestedAgents, c.profile.Name)
		}
	}
	return suggestion
}

func scoreAgent(p AgentProfile, sc *analytics.ScenarioContext, pat *analytics.InteractionPattern) map[string]float64 {
	return map[string]float64{
		FactorDomainAffinity:     domainAffinity(p, sc.Domain),
		FactorCapabilityCoverage: capabilityCoverage(p, sc.RequiredCapabilities),
		FactorComplexityFit:      complexityFit(p, sc.Complexity),
		FactorIntentOverlap:      intentOverlap(p, sc.Intents),
		FactorGoalClarity:        goalClarity(pat),
	}
}

func domainAffinity(p AgentProfile, domain string) float64 {
	for _, d := range p.Domains {
		if d == domain {
			return 1.0
		}
	}
	for _, d := range p.Domains {
		if d == analysis.DefaultDomain {
			return 0.5
		}
	}
	return 0.1
}

func capabilityCoverage(p AgentProfile, required []string) float64 {
	if len(required) == 0 {
		return 0.7
	}
	have := make(map[string]struct{}, len(p.Capabilities))
	for _, c := range p.Capabilities {
		have[c] = struct{}{}
	}
	matched := 0
	for _, c := range required {
		if _, ok := have[c]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func complexityFit(p AgentProfile, c analysis.Complexity) float64 {
	if len(p.Complexity) == 0 {
		return 0.7
	}
	for _, level := range p.Complexity {
		if level == c {
			return 1.0
		}
	}
	return 0.4
}

func intentOverlap(p AgentProfile, intents []string) float64 {
	if len(p.Intents) == 0 {
		return 0.7
	}
	if len(intents) == 0 {
		return 0.5
	}
	have := make(map[string]struct{}, len(p.Intents))
	for _, i := range p.Intents {
		have[i] = struct{}{}
	}
	matched := 0
	for _, i := range intents {
		if _, ok := have[i]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(intents))
}

func goalClarity(pat *analytics.InteractionPattern) float64 {
	switch pat.GoalClarity {
	case "high":
		return 1.0
	case "medium":
		return 0.7
	default:
		return 0.5
	}
}

func meanFactor(factors map[string]float64) float64 {
	if len(factors) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range factors {
		sum += v
	}
	return sum / float64(len(factors))
}

func reasoningFor(p AgentProfile, factors map[string]float64, sc *analytics.ScenarioContext) []string {
	reasons := []string{
		fmt.Sprintf("domain %s affinity for %s: %.2f", sc.Domain, p.Name, factors[FactorDomainAffinity]),
		fmt.Sprintf("capability coverage %.2f over required set [%s]", factors[FactorCapabilityCoverage], strings.Join(sc.RequiredCapabilities, ", ")),
		fmt.Sprintf("complexity %s fit: %.2f", sc.Complexity, factors[FactorComplexityFit]),
		fmt.Sprintf("intent overlap: %.2f", factors[FactorIntentOverlap]),
	}
	return reasons
}
