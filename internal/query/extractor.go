package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/JPZU/InsightIQ/internal/llm"
)

// ExtractSQL returns the statement from the first SQL-bearing step of the
// trace, or "" when the agent answered without querying.
func ExtractSQL(trace *llm.Trace) string {
	if trace == nil {
		return ""
	}
	sql, ok := trace.FirstSQL()
	if !ok {
		return ""
	}
	return sql
}

var doubledKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bSELECT\s+SELECT\b`),
	regexp.MustCompile(`(?i)\bFROM\s+FROM\b`),
	regexp.MustCompile(`(?i)\bWHERE\s+WHERE\b`),
}

// Sanitize normalizes a raw agent-produced statement: trailing commas are
// stripped, doubled clause keywords collapsed, known space-containing
// identifiers double-quoted, and the statement is ";"-terminated.
// Sanitize(Sanitize(s)) == Sanitize(s) for every s.
func Sanitize(stmt string, quotedIdents []string) string {
	s := strings.TrimSpace(stmt)
	if s == "" {
		return ""
	}

	// Drop the terminator and any trailing commas before re-terminating,
	// so a second pass sees the same input shape.
	s = strings.TrimRight(s, " \t\r\n;,")
	if s == "" {
		return ""
	}

	for _, re := range doubledKeywords {
		for {
			collapsed := re.ReplaceAllStringFunc(s, func(match string) string {
				return strings.Fields(match)[0]
			})
			if collapsed == s {
				break
			}
			s = collapsed
		}
	}

	s = quoteSpacedIdents(s, quotedIdents)

	return s + ";"
}

// quoteSpacedIdents double-quotes every occurrence of the given
// space-containing identifiers. A single alternation ordered longest-first
// makes overlapping identifiers resolve to the longest match, and matching
// optional surrounding quotes keeps the rewrite idempotent.
func quoteSpacedIdents(s string, idents []string) string {
	spaced := make([]string, 0, len(idents))
	for _, ident := range idents {
		if strings.Contains(ident, " ") {
			spaced = append(spaced, ident)
		}
	}
	if len(spaced) == 0 {
		return s
	}

	sort.Slice(spaced, func(i, j int) bool { return len(spaced[i]) > len(spaced[j]) })

	quoted := make([]string, len(spaced))
	for i, ident := range spaced {
		quoted[i] = regexp.QuoteMeta(ident)
	}
	re := regexp.MustCompile(`"?(?:` + strings.Join(quoted, "|") + `)"?`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		return `"` + strings.Trim(match, `"`) + `"`
	})
}
