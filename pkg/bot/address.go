// Copyright 2024-2026 Aiku AI

package bot

import (
	"regexp"
	"strings"
)

var (
	idMentionRe   = regexp.MustCompile(`(?s)^<@(\w+)(?:\|[^>]*)?>:?\s*(.*)$`)
	nameMentionRe = regexp.MustCompile(`(?s)^@([\w.\-]+):?\s*(.*)$`)
)

// Addresser decides whether a message is directed at the bot.
type Addresser struct {
	Aliases []string
}

// Address reports whether evt is directed at the bot and returns its text with
// the leading mention or alias removed. In direct messages every message is
// addressed; in channels the text must start with a mention of the bot, by id
// or by name, or with one of the aliases.
func (a Addresser) Address(evt Event, botID, botName string) (string, bool) {
	text := evt.Text
	direct := evt.IsDirect()

	if m := idMentionRe.FindStringSubmatch(text); m != nil {
		if m[1] == botID || direct {
			return strings.TrimSpace(m[2]), true
		}
		return "", false
	}
	if m := nameMentionRe.FindStringSubmatch(text); m != nil && botName != "" && m[1] == botName {
		return strings.TrimSpace(m[2]), true
	}
	for _, alias := range a.Aliases {
		if alias != "" && strings.HasPrefix(text, alias) {
			return strings.TrimSpace(strings.TrimPrefix(text, alias)), true
		}
	}
	if direct {
		return strings.TrimSpace(text), true
	}
	return "", false
}
