// Package markdown keeps Discord-bound text intact: it escapes formatting
// characters without corrupting mentions, URLs, or emoticons, and guards
// inbound text against transcript impersonation.
package markdown

import "regexp"

// All patterns compile at init; a bad pattern is a programming error and
// should fail fast rather than silently match nothing.
var (
	// Discord mention syntax: <@id>, <@!id>, <@&id>, <#id>.
	mentionRE = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)

	// URLs up to whitespace or angle brackets.
	urlRE = regexp.MustCompile(`https?://[^\s<>]+`)

	// Kaomoji-style emoticons. A parenthesized face is recognized by a
	// typical face character between the parens; ASCII smileys like :) carry
	// no markdown characters and need no protection.
	emoticonRE = regexp.MustCompile(`¯\\_\(ツ\)_/¯|ヽ\([^()]*\)ノ|[(（][^()（）]*[◕◉⊙°□▽‿⌒ಠツヮДωノヽTvV~∀・_^\\/|*-][^()（）]*[)）]`)

	// A backslash already escaping a markdown character.
	escapedCharRE = regexp.MustCompile("\\\\[*_`~|>]")

	// Lines that look like a transcript entry: "name: text".
	impersonationRE = regexp.MustCompile(`(?m)^([A-Za-z0-9_\-\.]+\s*:\s*.+)$`)

	// A mention posing as a transcript speaker label.
	fakeMentionRE = regexp.MustCompile(`<@!?\d+>\s*:\s*`)

	// Full custom-emoji reference: <:name:id>.
	reactionEmojiRE = regexp.MustCompile(`^<:([a-zA-Z0-9_]+):(\d+)>$`)

	// Bare custom-emoji name: :name:.
	guildEmojiRE = regexp.MustCompile(`^:([a-zA-Z0-9_]+):$`)
)

// ParseCustomEmoji extracts (name, id) from a <:name:id> reference.
func ParseCustomEmoji(s string) (name, id string, ok bool) {
	m := reactionEmojiRE.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseGuildEmojiName extracts the name from a bare :name: reference.
func ParseGuildEmojiName(s string) (string, bool) {
	m := guildEmojiRE.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
