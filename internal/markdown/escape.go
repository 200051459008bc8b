package markdown

import (
	"regexp"
	"sort"
	"strings"
)

// span is a half-open byte range [start, end) that must copy verbatim.
type span struct {
	start, end int
}

// Escape backslash-escapes Discord markdown characters (* _ ` ~ | >) while
// leaving mentions, URLs, emoticons, and already-escaped characters intact.
// Escape is idempotent: applying it to its own output changes nothing.
func Escape(text string) string {
	// Models sometimes emit literal \n sequences and escaped mention
	// brackets; normalize those before scanning.
	s := strings.ReplaceAll(text, `\n`, "\n")
	s = strings.ReplaceAll(s, `\<@`, "<@")
	s = strings.ReplaceAll(s, `\<#`, "<#")
	s = strings.ReplaceAll(s, `\<&`, "<&")

	spans := protectedSpans(s)

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	pos := 0
	for _, sp := range spans {
		escapeInto(&b, s[pos:sp.start])
		b.WriteString(s[sp.start:sp.end])
		pos = sp.end
	}
	escapeInto(&b, s[pos:])
	return b.String()
}

// protectedSpans collects matches from every preservation pattern, sorts
// them, and merges overlapping or touching ranges into a single pass-through
// list.
func protectedSpans(s string) []span {
	var spans []span
	for _, re := range []*regexp.Regexp{mentionRE, urlRE, emoticonRE, escapedCharRE} {
		for _, m := range re.FindAllStringIndex(s, -1) {
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := make([]span, 0, len(spans))
	for _, sp := range spans {
		if n := len(merged); n > 0 && sp.start <= merged[n-1].end {
			if sp.end > merged[n-1].end {
				merged[n-1].end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

func escapeInto(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '*', '_', '`', '~', '|', '>':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
}
