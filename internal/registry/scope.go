package registry

import "strings"

const (
	ScopeNewBuild      = "NEW_BUILD"
	ScopePartialUpdate = "PARTIAL_UPDATE"
	ScopeUnknown       = "UNKNOWN"
)

// ScopeClassifier maps a freeform scope answer to a scope value. When it
// cannot decide it returns ScopeUnknown and the text to keep for later.
type ScopeClassifier func(answer string) (scope, details string)

var (
	partialKeywords = []string{"update", "partial", "refactor"}
	newKeywords     = []string{"new", "scratch"}
)

// ClassifyScope is a keyword heuristic, not a parser. Update keywords win over
// new-build keywords; anything else is UNKNOWN with the trimmed answer kept.
// Substring matching means words like "newsletter" count as new-build hits.
func ClassifyScope(answer string) (string, string) {
	lower := strings.ToLower(answer)
	for _, k := range partialKeywords {
		if strings.Contains(lower, k) {
			return ScopePartialUpdate, ""
		}
	}
	for _, k := range newKeywords {
		if strings.Contains(lower, k) {
			return ScopeNewBuild, ""
		}
	}
	return ScopeUnknown, strings.TrimSpace(answer)
}

// MergeScope classifies answer and records project_scope, plus scope_details
// when the classification is UNKNOWN.
func MergeScope(r Registry, answer string, classify ScopeClassifier) Registry {
	if strings.TrimSpace(answer) == "" {
		return r
	}
	if classify == nil {
		classify = ClassifyScope
	}
	scope, details := classify(answer)
	out := r.Clone()
	out[FieldProjectScope] = Scalar(scope)
	if scope == ScopeUnknown {
		out[FieldScopeDetails] = Scalar(details)
	}
	return out
}
