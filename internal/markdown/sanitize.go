package markdown

import (
	"fmt"
	"strings"
)

const (
	// Discord rejects messages over 2000 characters.
	discordMessageLimit = 2000
	truncateKeep        = 1950
)

// GuardImpersonation rewrites inbound text that mimics a chat transcript so
// it cannot be mistaken for other speakers. Suspicious "name: text" lines
// are quoted and the whole message is attributed to its real author. Clean
// text passes through unchanged.
func GuardImpersonation(text, author string) string {
	out := text

	if impersonationRE.MatchString(out) {
		lines := strings.Split(out, "\n")
		suspicious := 0
		for _, line := range lines {
			if looksLikeTranscript(line) {
				suspicious++
			}
		}
		// One labeled line inside a multi-line message, or several labeled
		// lines, reads as a forged transcript.
		if suspicious > 1 || (suspicious == 1 && len(lines) > 1) {
			quoted := make([]string, len(lines))
			for i, line := range lines {
				if looksLikeTranscript(line) {
					quoted[i] = "> " + line
				} else {
					quoted[i] = line
				}
			}
			out = fmt.Sprintf("%s said:\n%s", author, strings.Join(quoted, "\n"))
		}
	}

	return fakeMentionRE.ReplaceAllString(out, "[mention]: ")
}

func looksLikeTranscript(line string) bool {
	return strings.Contains(line, ":") &&
		strings.TrimSpace(line) != "" &&
		!strings.HasPrefix(line, ">") &&
		!strings.HasPrefix(line, "http")
}

// TruncateForDiscord caps content at the Discord message limit, marking the
// cut. Truncation is rune-safe.
func TruncateForDiscord(content string) string {
	runes := []rune(content)
	if len(runes) <= discordMessageLimit {
		return content
	}
	return string(runes[:truncateKeep]) + "...\n\n*(Message truncated due to length)*"
}
