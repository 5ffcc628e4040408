// Package analysis classifies raw utterance text into intent, domain,
// complexity and ambiguity signals. Everything here is pure and
// deterministic: the same input text always produces the same Analysis.
package analysis

import "strings"

var interrogativeTokens = tokenSet(
	"what", "why", "how", "when", "where", "who", "which",
	"can", "could", "would", "should", "is", "are", "do", "does", "did",
)

var requestVerbTokens = tokenSet(
	"create", "make", "build", "generate", "write", "add", "remove",
	"delete", "update", "fix", "run", "execute", "send", "schedule",
	"summarize", "translate", "help",
)

var hedgingTokens = tokenSet(
	"any", "some", "maybe", "possibly", "about", "roughly", "perhaps",
)

var temporalReferenceTokens = tokenSet(
	"before", "previous", "previously", "earlier", "again", "yesterday",
	"already", "last",
)

var recallTokens = tokenSet(
	"remember", "recall", "mentioned", "discussed", "said", "told",
)

// domainEntry order matters: ties between accumulated keyword weights
// resolve to the entry that appears first in this table.
type domainEntry struct {
	name        string
	keywords    map[string]struct{}
	uncertainty map[string]struct{}
}

var domainTable = []domainEntry{
	{
		name: "technology",
		keywords: tokenSet(
			"code", "software", "program", "computer", "server", "api",
			"bug", "database", "app", "deploy", "library", "compile",
		),
		uncertainty: tokenSet("crash", "broken", "glitch", "weird"),
	},
	{
		name: "science",
		keywords: tokenSet(
			"physics", "chemistry", "biology", "experiment", "theory",
			"research", "molecule", "species", "quantum",
		),
		uncertainty: tokenSet("hypothesis", "unproven", "debated"),
	},
	{
		name: "business",
		keywords: tokenSet(
			"market", "revenue", "customer", "sales", "strategy",
			"budget", "invoice", "meeting", "contract",
		),
		uncertainty: tokenSet("volatile", "uncertain", "pending"),
	},
	{
		name: "health",
		keywords: tokenSet(
			"doctor", "symptom", "medicine", "diet", "exercise", "sleep",
			"injury", "therapy",
		),
		uncertainty: tokenSet("diagnosis", "severe", "chronic"),
	},
	{
		name: "travel",
		keywords: tokenSet(
			"flight", "hotel", "trip", "visa", "itinerary", "destination",
			"airport", "booking",
		),
		uncertainty: tokenSet("delayed", "cancelled", "overbooked"),
	},
	{
		name: "finance",
		keywords: tokenSet(
			"invest", "stock", "loan", "tax", "savings", "interest",
			"portfolio", "mortgage",
		),
		uncertainty: tokenSet("risky", "fluctuating"),
	},
}

// Analyze derives the full signal set for one utterance. Pure function:
// no state is read or written, so repeated calls with identical input
// return identical results.
func Analyze(content string) Analysis {
	tokens := tokenize(content)

	a := Analysis{Domain: DefaultDomain}

	detectIntents(&a, content, tokens)
	detectMemoryDependencies(&a, tokens)
	classifyDomain(&a, tokens)
	a.Complexity = scoreComplexity(content, a)

	if a.Complexity == ComplexityHigh {
		a.MemoryDependencies = append(a.MemoryDependencies, MemoryDependency{
			Type:       DependencyDomainKnowledge,
			Relevance:  LevelCritical,
			Timeframe:  TimeframeHistorical,
			Confidence: 0.85,
		})
	}

	return a
}

func detectIntents(a *Analysis, content string, tokens []string) {
	if strings.Contains(content, "?") || containsAny(tokens, interrogativeTokens) {
		a.Intents = append(a.Intents, IntentInformationSeeking)
		if containsAny(tokens, hedgingTokens) {
			a.AmbiguityFactors = append(a.AmbiguityFactors, AmbiguityFactor{
				Type:        AmbiguityIntent,
				Description: "hedged question: the information request is not fully scoped",
				ImpactLevel: LevelMedium,
				ResolutionHints: []string{
					"ask for specific examples",
					"clarify scope",
				},
			})
		}
	}
	if containsAny(tokens, requestVerbTokens) {
		a.Intents = append(a.Intents, IntentActionRequest)
	}
}

func detectMemoryDependencies(a *Analysis, tokens []string) {
	if containsAny(tokens, temporalReferenceTokens) {
		a.MemoryDependencies = append(a.MemoryDependencies, MemoryDependency{
			Type:       DependencyConversationContext,
			Relevance:  LevelCritical,
			Timeframe:  TimeframeRecent,
			Confidence: 0.9,
		})
	}
	if containsAny(tokens, recallTokens) {
		a.MemoryDependencies = append(a.MemoryDependencies, MemoryDependency{
			Type:       DependencyPriorInteraction,
			Relevance:  LevelCritical,
			Timeframe:  TimeframeRecent,
			Confidence: 0.8,
		})
		a.AmbiguityFactors = append(a.AmbiguityFactors, AmbiguityFactor{
			Type:        AmbiguityReference,
			Description: "utterance refers back to earlier conversation content",
			ImpactLevel: LevelHigh,
			ResolutionHints: []string{
				"confirm which earlier exchange is meant",
			},
		})
	}
}

func classifyDomain(a *Analysis, tokens []string) {
	weights := make([]int, len(domainTable))
	for _, tok := range tokens {
		for i := range domainTable {
			if _, ok := domainTable[i].keywords[tok]; ok {
				weights[i]++
			}
			if _, ok := domainTable[i].uncertainty[tok]; ok {
				a.AmbiguityFactors = append(a.AmbiguityFactors, AmbiguityFactor{
					Type:        AmbiguitySemantic,
					Description: "uncertainty indicator " + tok + " in the " + domainTable[i].name + " domain",
					ImpactLevel: LevelMedium,
					ResolutionHints: []string{
						"confirm the " + domainTable[i].name + " detail in question",
					},
				})
			}
		}
	}

	best := -1
	bestWeight := 0
	for i, w := range weights {
		if w > bestWeight {
			best = i
			bestWeight = w
		}
	}
	if best >= 0 {
		a.Domain = domainTable[best].name
	}
}

func scoreComplexity(content string, a Analysis) Complexity {
	score := 0
	switch length := len([]rune(content)); {
	case length > 100:
		score += 2
	case length > 50:
		score++
	}
	switch {
	case len(a.Intents) > 2:
		score += 2
	case len(a.Intents) > 1:
		score++
	}
	if a.Domain != DefaultDomain {
		score++
	}
	score += len(a.AmbiguityFactors)

	switch {
	case score >= 4:
		return ComplexityHigh
	case score >= 2:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

func tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, " .,!?:;\"'()")
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func containsAny(tokens []string, set map[string]struct{}) bool {
	for _, tok := range tokens {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

func tokenSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
