package reasoner

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json|JSON)?[ \t]*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
)

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from a model response.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
