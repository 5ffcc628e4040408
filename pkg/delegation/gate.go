package delegation

import "fmt"

// GateConfig holds the auto-delegation thresholds. The defaults are
// deliberately strict: autonomous agent switching is the exception.
type GateConfig struct {
	MinConfidence  float64
	MinReasoning   int
	MinFactorScore float64
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:  0.95,
		MinReasoning:   3,
		MinFactorScore: 0.9,
	}
}

// GateDecision reports whether an automatic switch is permitted and, when
// it is not, exactly which checks failed with their observed values.
type GateDecision struct {
	Allowed        bool
	Confidence     float64
	ReasoningCount int
	FailedFactors  map[string]float64
	Failures       []string
}

// EvaluateGate applies the auto-delegation policy to an advisor output.
// A switch is permitted only when confidence strictly exceeds
// MinConfidence, the reasoning list has at least MinReasoning entries,
// and every context-match factor strictly exceeds MinFactorScore.
func EvaluateGate(cfg GateConfig, s Suggestion) GateDecision {
	decision := GateDecision{
		Confidence:     s.Confidence,
		ReasoningCount: len(s.Reasoning),
		FailedFactors:  map[string]float64{},
	}

	if !(s.Confidence > cfg.MinConfidence) {
		decision.Failures = append(decision.Failures,
			fmt.Sprintf("confidence %.4f not above %.4f", s.Confidence, cfg.MinConfidence))
	}
	if len(s.Reasoning) < cfg.MinReasoning {
		decision.Failures = append(decision.Failures,
			fmt.Sprintf("reasoning count %d below %d", len(s.Reasoning), cfg.MinReasoning))
	}
	for factor, score := range s.ContextMatch {
		if !(score > cfg.MinFactorScore) {
			decision.FailedFactors[factor] = score
		}
	}
	if len(decision.FailedFactors) > 0 {
		decision.Failures = append(decision.Failures,
			fmt.Sprintf("%d context-match factors at or below %.4f", len(decision.FailedFactors), cfg.MinFactorScore))
	}

	decision.Allowed = len(decision.Failures) == 0
	return decision
}
