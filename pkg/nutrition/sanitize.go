package nutrition

import (
	"regexp"
	"strings"
)

var (
	reFenceOpen  = regexp.MustCompile("```json\\s*")
	reFenceClose = regexp.MustCompile("```\\s*")
)

// stripFences removes markdown code fences the model may wrap its JSON in
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = reFenceOpen.ReplaceAllString(raw, "")
	raw = reFenceClose.ReplaceAllString(raw, "")
	return strings.TrimSpace(raw)
}
