package analysis

import (
	"reflect"
	"strings"
	"testing"
)

func TestAnalyze_Deterministic(t *testing.T) {
	input := "Can you maybe fix the server bug we discussed before? My deploy is broken again."
	first := Analyze(input)
	second := Analyze(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical input:\n%#v\n%#v", first, second)
	}
}

func TestAnalyze_QuestionDetectsInformationSeeking(t *testing.T) {
	a := Analyze("What changed since yesterday?")
	if !hasIntent(a, IntentInformationSeeking) {
		t.Fatalf("expected information_seeking intent, got %v", a.Intents)
	}
}

func TestAnalyze_RequestVerbDetectsActionRequest(t *testing.T) {
	a := Analyze("Create a packing list for the trip")
	if !hasIntent(a, IntentActionRequest) {
		t.Fatalf("expected action_request intent, got %v", a.Intents)
	}
}

func TestAnalyze_TemporalTokensAddConversationContextDependency(t *testing.T) {
	a := Analyze("What did we decide before?")
	dep, ok := findDependency(a, DependencyConversationContext)
	if !ok {
		t.Fatalf("expected conversation_context dependency, got %v", a.MemoryDependencies)
	}
	if dep.Relevance != LevelCritical || dep.Confidence != 0.9 {
		t.Fatalf("unexpected dependency shape: %#v", dep)
	}
}

func TestAnalyze_RecallTokensAddPriorInteractionDependencyAndReferenceFactor(t *testing.T) {
	a := Analyze("Do you remember the hotel I mentioned")
	dep, ok := findDependency(a, DependencyPriorInteraction)
	if !ok {
		t.Fatalf("expected prior_interaction dependency, got %v", a.MemoryDependencies)
	}
	if dep.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", dep.Confidence)
	}
	if _, ok := findFactor(a, AmbiguityReference); !ok {
		t.Fatalf("expected reference ambiguity factor, got %v", a.AmbiguityFactors)
	}
}

func TestAnalyze_HedgedQuestionRaisesIntentAmbiguity(t *testing.T) {
	a := Analyze("Is there maybe some way to do this?")
	factor, ok := findFactor(a, AmbiguityIntent)
	if !ok {
		t.Fatalf("expected intent ambiguity factor, got %v", a.AmbiguityFactors)
	}
	if factor.ImpactLevel != LevelMedium {
		t.Fatalf("expected medium impact, got %s", factor.ImpactLevel)
	}
	if len(factor.ResolutionHints) != 2 {
		t.Fatalf("expected two resolution hints, got %v", factor.ResolutionHints)
	}
}

func TestAnalyze_DomainClassification(t *testing.T) {
	a := Analyze("the server code has a bug in the api")
	if a.Domain != "technology" {
		t.Fatalf("expected technology domain, got %s", a.Domain)
	}

	a = Analyze("hello there friend")
	if a.Domain != DefaultDomain {
		t.Fatalf("expected default domain, got %s", a.Domain)
	}
}

func TestAnalyze_DomainTieResolvesToTableOrder(t *testing.T) {
	// One keyword from technology, one from travel: technology is listed
	// first in the table and must win the tie.
	a := Analyze("the server at the airport")
	if a.Domain != "technology" {
		t.Fatalf("expected tie to resolve to technology, got %s", a.Domain)
	}
}

func TestAnalyze_UncertaintyIndicatorAddsSemanticFactorForLosingDomain(t *testing.T) {
	// Travel uncertainty token alongside a decisive technology utterance:
	// the semantic factor must name travel even though technology wins.
	a := Analyze("the server code api bug database was delayed")
	if a.Domain != "technology" {
		t.Fatalf("expected technology domain, got %s", a.Domain)
	}
	factor, ok := findFactor(a, AmbiguitySemantic)
	if !ok {
		t.Fatalf("expected semantic ambiguity factor, got %v", a.AmbiguityFactors)
	}
	if !strings.Contains(factor.Description, "travel") {
		t.Fatalf("expected factor to name the travel domain: %s", factor.Description)
	}
}

func TestAnalyze_HighComplexityScenario(t *testing.T) {
	// >100 chars, question + request verb (two intents), recognized domain,
	// and a hedging ambiguity factor: score is at least 4.
	input := "Can you maybe fix the server code bug and update the api deployment before the demo tomorrow afternoon please?"
	if len([]rune(input)) <= 100 {
		t.Fatalf("fixture must exceed 100 chars, has %d", len([]rune(input)))
	}
	a := Analyze(input)
	if len(a.Intents) < 2 {
		t.Fatalf("fixture must carry two intents, got %v", a.Intents)
	}
	if a.Complexity != ComplexityHigh {
		t.Fatalf("expected high complexity, got %s", a.Complexity)
	}
	if _, ok := findDependency(a, DependencyDomainKnowledge); !ok {
		t.Fatalf("expected domain_knowledge dependency at high complexity, got %v", a.MemoryDependencies)
	}
}

func TestAnalyze_LowComplexityForShortPlainText(t *testing.T) {
	a := Analyze("thanks")
	if a.Complexity != ComplexityLow {
		t.Fatalf("expected low complexity, got %s", a.Complexity)
	}
	if len(a.MemoryDependencies) != 0 {
		t.Fatalf("expected no dependencies, got %v", a.MemoryDependencies)
	}
}

func hasIntent(a Analysis, intent string) bool {
	for _, i := range a.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

func findDependency(a Analysis, depType string) (MemoryDependency, bool) {
	for _, d := range a.MemoryDependencies {
		if d.Type == depType {
			return d, true
		}
	}
	return MemoryDependency{}, false
}

func findFactor(a Analysis, factorType string) (AmbiguityFactor, bool) {
	for _, f := range a.AmbiguityFactors {
		if f.Type == factorType {
			return f, true
		}
	}
	return AmbiguityFactor{}, false
}
