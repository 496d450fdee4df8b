package guard

import (
	"regexp"
	"strings"
)

type Reason string

const (
	ReasonExact    Reason = "exact"
	ReasonSemantic Reason = "semantic"
	ReasonFishing  Reason = "fishing"
)

// Verdict explains why a question was flagged. Duplicate is false for an
// acceptable question.
type Verdict struct {
	Duplicate bool
	Reason    Reason
	// Match is the earlier question or the fishing phrase that triggered.
	Match   string
	Subject string
}

var (
	// Subject extraction is a heuristic: it pins what the question is about
	// ("for the Doctor role", "the Invoice entity") and misses free phrasing.
	defaultSubjects = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:for|of|about|does|do|can|should|will)\s+(?:the\s+|an?\s+)?["'“]?([\p{L}][\p{L}\d_-]*(?:\s+[\p{L}][\p{L}\d_-]*)?)["'”]?\s+(?:role|roles|users?|entity|entities|module|records?|table|screen|page)\b`),
		regexp.MustCompile(`(?i)\b(?:the|an?)\s+["'“]([^"'”]{2,40})["'”]`),
		regexp.MustCompile(`(?i)\bshould\s+(?:an?\s+|the\s+)?([\p{L}][\p{L}\d_-]*)s?\s+be\s+able\s+to\b`),
	}
	defaultTopic = regexp.MustCompile(`(?i)\b(?:fields?|attributes?|propert(?:y|ies)|data|details|information|entit(?:y|ies)|features?|capabilit(?:y|ies)|functions?|functionality|actions?|permissions?|store|track)\b`)

	defaultFishing = []string{
		"are there any other",
		"is there anything else",
		"anything else",
		"any other",
		"any more",
		"anything more",
		"what else",
		"such as",
		"would you like to add",
		"would you like to include",
		"do you want to add",
		"is there anything",
	}
)

// Detector flags questions that repeat history or fish for open-ended input.
type Detector struct {
	Subjects []*regexp.Regexp
	Topic    *regexp.Regexp
	Fishing  []string
}

func NewDetector() *Detector {
	return &Detector{
		Subjects: defaultSubjects,
		Topic:    defaultTopic,
		Fishing:  defaultFishing,
	}
}

// Check tests question against every previously asked question. Exact
// repeats win over semantic ones, which win over fishing phrases.
func (d *Detector) Check(question string, asked []string) Verdict {
	norm := normalizeQuestion(question)
	if norm == "" {
		return Verdict{}
	}
	for _, prev := range asked {
		if normalizeQuestion(prev) == norm {
			return Verdict{Duplicate: true, Reason: ReasonExact, Match: prev}
		}
	}
	if subject := d.subject(question); subject != "" && d.Topic.MatchString(question) {
		re := subjectPattern(subject)
		for _, prev := range asked {
			if re.MatchString(prev) && d.Topic.MatchString(prev) {
				return Verdict{Duplicate: true, Reason: ReasonSemantic, Match: prev, Subject: subject}
			}
		}
	}
	lower := strings.ToLower(question)
	for _, phrase := range d.Fishing {
		if strings.Contains(lower, phrase) {
			return Verdict{Duplicate: true, Reason: ReasonFishing, Match: phrase}
		}
	}
	return Verdict{}
}

func (d *Detector) subject(question string) string {
	for _, re := range d.Subjects {
		if m := re.FindStringSubmatch(question); len(m) > 1 {
			if s := strings.TrimSpace(m[1]); s != "" && !stopword(s) {
				return s
			}
		}
	}
	return ""
}

func subjectPattern(subject string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(subject) + `s?\b`)
}

var stopwords = map[string]struct{}{
	"you": {}, "your": {}, "we": {}, "they": {}, "this": {}, "that": {}, "it": {},
	"each": {}, "every": {}, "any": {}, "other": {}, "these": {}, "those": {},
}

func stopword(s string) bool {
	_, ok := stopwords[strings.ToLower(s)]
	return ok
}

func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.Join(strings.Fields(q), " "))
	return strings.TrimRight(q, "?!. ")
}
