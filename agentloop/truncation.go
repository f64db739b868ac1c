package agentloop

import (
	"fmt"
	"strings"
)

// PreviewLimit bounds tool output echoed into events. The untruncated output
// still re-enters the model's context; the preview only controls event
// payload size.
const PreviewLimit = 500

// Preview truncates s to at most maxChars characters, marking the cut.
func Preview(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars] + fmt.Sprintf("... [%d more characters]", len(s)-maxChars)
}

// TruncateMiddle keeps the head and tail of s and removes the middle once s
// exceeds maxChars. Used for file content injected into the system prompt,
// where both the top of the file (imports, declarations) and the bottom
// (most recent edits) matter more than the middle.
func TruncateMiddle(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	half := maxChars / 2
	removed := len(s) - maxChars
	return s[:half] +
		fmt.Sprintf("\n\n[... %d characters truncated from the middle ...]\n\n", removed) +
		s[len(s)-half:]
}

// TruncateLines caps s at maxLines lines using a head/tail split.
func TruncateLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount
	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}
