// Package sanitize rewrites generated answer text before it reaches a user.
//
// The pipeline is an ordered list of pure regexp rewrite rules. Order matters:
// whitespace normalization assumes the removal stages already ran, and Slack
// markup conversion assumes whitespace is already collapsed. Every stage is a
// no-op on text it does not match, and the full pipeline is idempotent.
package sanitize

import (
	"regexp"
	"strings"
)

// Sanitizer applies the rewrite pipeline. The zero value strips document
// references and normalizes whitespace only.
type Sanitizer struct {
	// StripCodeRefs enables removal of identifier-call syntax and
	// "built using X(...)" phrasing. The synchronous query path turns
	// this on; the Slack path leaves it off unless configured.
	StripCodeRefs bool

	// SlackMarkup converts markdown headers and bold markers to Slack's
	// single-asterisk bold syntax and caps consecutive newlines at two.
	SlackMarkup bool
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Document-reference removal. Each matched span ends at the clause boundary
// (comma or period) so the rest of the sentence survives:
// "According to the document, X happens." -> "X happens."
var docRefRules = []rule{
	{regexp.MustCompile(`(?i)\b(?:according to|based on|as (?:stated|mentioned|described|noted) in)\s+(?:the\s+|this\s+)?document(?:ation)?\b[^,.\n]*[,.]?\s*`), ""},
	{regexp.MustCompile(`(?i)\b(?:according to|based on|as (?:stated|mentioned|described|noted) in)\s+(?:the\s+)?(?:file\s+)?["']?[\w./-]+\.md["']?[^,.\n]*[,.]?\s*`), ""},
	{regexp.MustCompile(`(?i)\bthe\s+document\s+["'][^"'\n]+["']\s+(?:states|says|notes|mentions|indicates)(?:\s+that)?[:,]?\s*`), ""},
	{regexp.MustCompile(`(?i)\bin\s+(?:the\s+)?document\s+["'][^"'\n]+["'][:,]?\s*`), ""},
	{regexp.MustCompile(`(?i)\bthe\s+document(?:ation)?\s+(?:states|says|notes|mentions|indicates)(?:\s+that)?[:,]?\s*`), ""},
}

// Code-reference removal. The "built using X" phrase rule runs before the
// bare call rules so the connective text goes with the identifier.
var codeRefRules = []rule{
	{regexp.MustCompile(`(?i)\s*(?:is|are|was|were)\s+(?:constructed|built|created|generated|computed)\s+(?:using|via|through|by\s+calling)\s+[A-Za-z_][\w.]*(?:\([^()]*\))?`), ""},
	{regexp.MustCompile(`(?i)\s+(?:using|via|through|by\s+calling)\s+(?:the\s+)?[A-Za-z_][\w.]*\([^()]*\)`), ""},
	{regexp.MustCompile(`\b[A-Za-z_]\w*(?:\.[A-Za-z_]\w*)+\([^()]*\)`), ""},
	{regexp.MustCompile(`\b[A-Z][A-Za-z]*\.[A-Z][A-Z0-9_]+\b`), ""},
	{regexp.MustCompile(`\b[A-Za-z_]\w*\([^()]*\)`), ""},
}

var whitespaceRules = []rule{
	{regexp.MustCompile(`[ \t]{2,}`), " "},
	{regexp.MustCompile(` +\n`), "\n"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

var slackRules = []rule{
	{regexp.MustCompile(`(?m)^#{1,6}\s*(.+?)\s*$`), "*$1*"},
	{regexp.MustCompile(`\*\*([^*\n]+?)\*\*`), "*$1*"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// maxPasses bounds the per-stage fixpoint loop. Removing one span can expose
// another (nested calls, stacked bold markers), so each stage reruns its
// rules until the text stops changing.
const maxPasses = 10

func applyRules(s string, rules []rule) string {
	for range maxPasses {
		out := s
		for _, r := range rules {
			out = r.re.ReplaceAllString(out, r.repl)
		}
		if out == s {
			return out
		}
		s = out
	}
	return s
}

// Sanitize runs the pipeline over raw answer text. Empty input passes
// through unchanged.
func (s Sanitizer) Sanitize(raw string) string {
	if raw == "" {
		return raw
	}

	out := applyRules(raw, docRefRules)
	if s.StripCodeRefs {
		out = applyRules(out, codeRefRules)
	}
	out = applyRules(out, whitespaceRules)
	if s.SlackMarkup {
		out = applyRules(out, slackRules)
	}
	return strings.TrimSpace(out)
}
