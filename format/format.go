// Package format converts Slack mrkdwn spans into Telegram-safe HTML.
//
// Only three transforms exist, applied in a fixed order: user mentions,
// bracketed links, asterisk bold. The order matters: links must see resolved
// mention text, and bold must not touch angle brackets introduced by the
// anchor tags.
package format

import (
	"regexp"
	"strings"

	"slack-relay/pkg/relay"
)

// UnknownUser is substituted for mention ids missing from the directory.
const UnknownUser = "USER"

var (
	// Slack encodes mentions as <@U...> with a word-character id.
	mentionRe = regexp.MustCompile(`<@(\w+)>`)

	// A line-leading "< " is quoting, not a link, and is left alone.
	// Link targets must be scheme-prefixed so re-running the transform
	// over already-emitted tags cannot re-capture them.
	linkRe = regexp.MustCompile(`(?m)^[^\S\n]*< |<((?:https?://|mailto:)[^<>*\r\n]*)>`)

	// A line-leading "* " is a bullet, not a bold marker.
	boldRe = regexp.MustCompile(`(?m)^[^\S\n]*\* |\*([^*\r\n]*)\*`)
)

// ToHTML rewrites mention, link, and bold spans in text. It never fails:
// unmatched markers and empty captures pass through unchanged, and applying
// it to its own output is a no-op.
func ToHTML(text string, users relay.Directory) string {
	text = resolveMentions(text, users)
	text = formatLinks(text)
	return formatBold(text)
}

func resolveMentions(text string, users relay.Directory) string {
	return mentionRe.ReplaceAllStringFunc(text, func(m string) string {
		id := strings.Trim(m, "<>@")
		if name, ok := users[id]; ok {
			return name
		}
		return UnknownUser
	})
}

func formatLinks(text string) string {
	return linkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		if len(sub) < 2 || sub[1] == "" {
			return m
		}
		return `<a href="` + sub[1] + `">` + sub[1] + `</a>`
	})
}

func formatBold(text string) string {
	return boldRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := boldRe.FindStringSubmatch(m)
		if len(sub) < 2 || sub[1] == "" {
			return m
		}
		return "<b>" + sub[1] + "</b>"
	})
}
