// Package query turns free-text citation queries ("bgb 001a 4") into the
// canonical form used both as cache key and as argument list for the recht tool.
package query

import (
	"regexp"
	"strings"
	"unicode"
)

// ToolCommand is the recht subcommand every lookup is issued with.
const ToolCommand = "get"

// segmentPattern matches one citation segment: digits with an optional letter suffix.
var segmentPattern = regexp.MustCompile(`^[0-9]+[A-Za-z]?$`)

// NormalizedQuery is the canonical form of a citation query.
// CacheKey and ToolArgs are derived from the same tokens and map one-to-one.
type NormalizedQuery struct {
	// CacheKey is the law code and segments joined by single spaces (e.g. "BGB 1A 4").
	CacheKey string

	// ToolArgs is the argument list for the recht tool (e.g. ["get", "BGB", "1A", "4"]).
	ToolArgs []string
}

// LawCode returns the normalized law code (e.g. "BGB").
func (q NormalizedQuery) LawCode() string {
	if len(q.ToolArgs) < 2 {
		return ""
	}
	return q.ToolArgs[1]
}

// Segments returns the normalized citation segments.
func (q NormalizedQuery) Segments() []string {
	if len(q.ToolArgs) < 3 {
		return nil
	}
	return q.ToolArgs[2:]
}

// Normalize parses a raw query. It reports false when the query lacks a law code
// or a segment, or when any segment is not of the form digits plus optional letter.
//
// Inputs that differ only in surrounding whitespace, law-code case or leading
// zeros yield identical results.
func Normalize(raw string) (NormalizedQuery, bool) {
	tokens := strings.Fields(raw)
	if len(tokens) < 2 {
		return NormalizedQuery{}, false
	}

	law := normalizeLawCode(tokens[0])
	if law == "" {
		return NormalizedQuery{}, false
	}

	segments := make([]string, 0, len(tokens)-1)
	for _, token := range tokens[1:] {
		segment, ok := normalizeSegment(token)
		if !ok {
			return NormalizedQuery{}, false
		}
		segments = append(segments, segment)
	}

	args := make([]string, 0, len(segments)+2)
	args = append(args, ToolCommand, law)
	args = append(args, segments...)

	return NormalizedQuery{
		CacheKey: strings.Join(args[1:], " "),
		ToolArgs: args,
	}, true
}

// normalizeLawCode keeps Latin-script letters only and upper-cases them.
func normalizeLawCode(token string) string {
	var b strings.Builder
	for _, r := range token {
		if unicode.IsLetter(r) && unicode.Is(unicode.Latin, r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// normalizeSegment validates a segment and strips zeros that precede another digit.
func normalizeSegment(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if !segmentPattern.MatchString(token) {
		return "", false
	}

	for len(token) > 1 && token[0] == '0' && isDigit(token[1]) {
		token = token[1:]
	}

	return strings.ToUpper(token), true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
