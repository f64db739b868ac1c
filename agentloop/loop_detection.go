package agentloop

import (
	"crypto/sha256"
	"fmt"
)

// loopDetectionWindow is how many recent tool calls DetectLoop inspects.
const loopDetectionWindow = 6

// toolCallHash compresses a call signature for comparison.
func toolCallHash(call ToolCall) string {
	h := sha256.Sum256([]byte(call.Signature()))
	return fmt.Sprintf("%x", h[:8])
}

// recentToolCallHashes collects hashes of the most recent tool calls from
// the conversation, in chronological order.
func recentToolCallHashes(turns []Turn, count int) []string {
	var hashes []string
	for i := len(turns) - 1; i >= 0 && len(hashes) < count; i-- {
		turn := turns[i]
		if turn.Kind != TurnAssistant || turn.Assistant == nil {
			continue
		}
		for j := len(turn.Assistant.ToolCalls) - 1; j >= 0 && len(hashes) < count; j-- {
			hashes = append(hashes, toolCallHash(turn.Assistant.ToolCalls[j]))
		}
	}
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
	return hashes
}

// DetectLoop reports whether the last windowSize tool calls repeat a pattern
// of length 1, 2, or 3 — the model re-issuing the same call (or the same
// short cycle of calls) without making progress.
func DetectLoop(turns []Turn, windowSize int) bool {
	if windowSize <= 0 {
		windowSize = loopDetectionWindow
	}
	hashes := recentToolCallHashes(turns, windowSize)
	if len(hashes) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := hashes[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if hashes[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
