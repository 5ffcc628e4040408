package analysis

// Complexity buckets an utterance by how much reasoning it likely needs.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Intent tags recognized by the extractor.
const (
	IntentInformationSeeking = "information_seeking"
	IntentActionRequest      = "action_request"
)

// Ambiguity factor types.
const (
	AmbiguityIntent    = "intent"
	AmbiguityReference = "reference"
	AmbiguitySemantic  = "semantic"
)

// Memory dependency types.
const (
	DependencyConversationContext = "conversation_context"
	DependencyPriorInteraction    = "prior_interaction"
	DependencyDomainKnowledge     = "domain_knowledge"
)

// Impact / relevance levels shared by ambiguity factors and dependencies.
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Dependency timeframes.
const (
	TimeframeRecent     = "recent"
	TimeframeHistorical = "historical"
)

// DefaultDomain is assigned when no domain keyword matches.
const DefaultDomain = "general"

// AmbiguityFactor flags a part of the utterance that needs clarification.
type AmbiguityFactor struct {
	Type            string
	Description     string
	ImpactLevel     string
	ResolutionHints []string
}

// MemoryDependency marks context the utterance cannot be answered without.
type MemoryDependency struct {
	Type       string
	Relevance  string
	Timeframe  string
	Confidence float64
}

// Analysis is the full signal set derived from one utterance.
type Analysis struct {
	Intents            []string
	Domain             string
	Complexity         Complexity
	AmbiguityFactors   []AmbiguityFactor
	MemoryDependencies []MemoryDependency
}
