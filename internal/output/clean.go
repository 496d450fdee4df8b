package output

import "strings"

// Clean extracts the JSON object from raw model text. It unwraps a code fence,
// trims prose around the outermost braces, and drops comments and trailing
// commas that sit outside string literals. A bare top-level array is kept as
// an array.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = unfence(s)
	if strings.HasPrefix(s, "[") {
		if i := strings.LastIndex(s, "]"); i >= 0 {
			s = s[:i+1]
		}
		return strings.TrimSpace(stripTrailingCommas(stripComments(s)))
	}
	if !strings.HasPrefix(s, "{") {
		if i := strings.Index(s, "{"); i >= 0 {
			s = s[i:]
		}
	}
	if !strings.HasSuffix(s, "}") {
		if i := strings.LastIndex(s, "}"); i >= 0 {
			s = s[:i+1]
		}
	}
	s = stripComments(s)
	s = stripTrailingCommas(s)
	return strings.TrimSpace(s)
}

func unfence(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		body := s[i+len("```json"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		// skip a language tag such as ```JSON or ```javascript
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	return s
}

// stripComments removes // line comments and /* */ blocks outside strings.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripTrailingCommas drops a comma followed only by blanks and a closing
// bracket or brace.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
