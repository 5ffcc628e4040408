package analytics

// MergePattern applies a shallow merge: every non-nil patch field fully
// replaces the previous value, every nil field keeps it. The result is a
// new record; neither input is mutated, so pattern history stays
// inspectable.
func MergePattern(prev InteractionPattern, patch PatternPatch) InteractionPattern {
	next := prev
	next.SecondaryIntents = append([]string(nil), prev.SecondaryIntents...)

	if patch.PrimaryIntent != nil {
		next.PrimaryIntent = *patch.PrimaryIntent
	}
	if patch.SecondaryIntents != nil {
		next.SecondaryIntents = append([]string(nil), (*patch.SecondaryIntents)...)
	}
	if patch.KnowledgeDepth != nil {
		next.KnowledgeDepth = *patch.KnowledgeDepth
	}
	if patch.Formality != nil {
		next.Formality = *patch.Formality
	}
	if patch.DetailLevel != nil {
		next.DetailLevel = *patch.DetailLevel
	}
	if patch.PreferredFormat != nil {
		next.PreferredFormat = *patch.PreferredFormat
	}
	if patch.UserExpertise != nil {
		next.UserExpertise = *patch.UserExpertise
	}
	if patch.GoalClarity != nil {
		next.GoalClarity = *patch.GoalClarity
	}
	if patch.Engagement != nil {
		next.Engagement = *patch.Engagement
	}
	return next
}
