package intent

import "strings"

// NotProvided replaces an answer the user declined. Completeness checks treat
// it as addressed.
const NotProvided = "Not Provided"

var declinePhrases = map[string]struct{}{
	"no":             {},
	"none":           {},
	"nope":           {},
	"skip":           {},
	"pass":           {},
	"unsure":         {},
	"not sure":       {},
	"unknown":        {},
	"n/a":            {},
	"na":             {},
	"not applicable": {},
	"i don't know":   {},
	"i dont know":    {},
	"i do not know":  {},
	"dont know":      {},
	"don't know":     {},
	"idk":            {},
	"no idea":        {},
	"nothing":        {},
}

// IsDecline reports whether raw reads as a refusal to answer.
func IsDecline(raw string) bool {
	s := strings.TrimSpace(raw)
	if len([]rune(s)) < 2 {
		return true
	}
	s = strings.ToLower(s)
	s = strings.TrimRight(s, ".!?,;: ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "’", "'")
	_, ok := declinePhrases[s]
	return ok
}

// Normalize returns NotProvided for declined answers and raw otherwise.
func Normalize(raw string) string {
	if IsDecline(raw) {
		return NotProvided
	}
	return raw
}
