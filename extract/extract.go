// Package extract selects notable posts from a channel's per-day export
// files and composes them into send-ready text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"slack-relay/format"
	"slack-relay/pkg/relay"
)

const replyFrame = "----------------"

// Source provides access to the channel's export files.
type Source interface {
	Days(ctx context.Context, channel string) ([]string, error)
	ReadDay(ctx context.Context, channel, name string) ([]relay.Entry, error)
}

// Options control post composition.
type Options struct {
	Channel    string
	AddReplies bool // Stitch same-day thread replies under the post
	MaxLength  int  // Hard cap on composed post length, in runes
	MinLength  int  // Drop posts shorter than this before replies; 0 disables
}

// Extractor walks a channel export and produces ordered posts.
type Extractor struct {
	source Source
	users  relay.Directory
	logger *slog.Logger
	opts   Options
}

// New creates an extractor over a dump source.
func New(source Source, users relay.Directory, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		source: source,
		users:  users,
		logger: logger,
		opts:   opts,
	}
}

// stitched is the per-day lookup value used for thread stitching.
type stitched struct {
	realName string
	text     string
}

// Posts extracts qualifying posts in day-file order, then file order within
// each day. Any read failure is fatal: a partial relay of a fixed dump is
// worse than none.
func (x *Extractor) Posts(ctx context.Context) ([]relay.Post, error) {
	days, err := x.source.Days(ctx, x.opts.Channel)
	if err != nil {
		return nil, fmt.Errorf("list day files: %w", err)
	}

	var posts []relay.Post
	for _, day := range days {
		entries, err := x.source.ReadDay(ctx, x.opts.Channel, day)
		if err != nil {
			return nil, fmt.Errorf("read day file: %w", err)
		}

		date := strings.TrimSuffix(day, ".json")
		dayPosts := x.composeDay(date, entries)
		posts = append(posts, dayPosts...)

		x.logger.Debug("Day file processed", "date", date, "entries", len(entries), "posts", len(dayPosts))
	}

	x.logger.Info("Posts extracted",
		"channel", x.opts.Channel,
		"days", len(days),
		"posts", len(posts))
	return posts, nil
}

func (x *Extractor) composeDay(date string, entries []relay.Entry) []relay.Post {
	// Same-day lookup for thread stitching. Only entries with both an
	// author and a profile can appear as replies.
	lookup := make(map[string]stitched)
	for _, e := range entries {
		if e.User == "" || e.UserProfile == nil {
			continue
		}
		lookup[e.Key()] = stitched{realName: e.UserProfile.RealName, text: e.Text}
	}

	var posts []relay.Post
	for _, e := range entries {
		if !e.Qualifies() {
			continue
		}

		post := fmt.Sprintf("POSTED BY *%s* on %s:\n%s", e.UserProfile.RealName, date, e.Text)

		// The short-post check runs before replies are appended: a
		// thin post does not become notable by having a long thread.
		if x.opts.MinLength > 0 && utf8.RuneCountInString(post) < x.opts.MinLength {
			x.logger.Debug("Post below minimum length, dropped",
				"date", date, "author", e.UserProfile.RealName, "length", utf8.RuneCountInString(post))
			continue
		}

		if x.opts.AddReplies {
			post += x.stitchReplies(e, lookup)
		}

		posts = append(posts, relay.Post{Date: date, Text: truncate(post, x.opts.MaxLength)})
	}
	return posts
}

// stitchReplies appends the same-day replies of an entry. Replies from other
// days are not in the lookup and are silently skipped; if none resolve, no
// THREAD header is emitted.
func (x *Extractor) stitchReplies(e relay.Entry, lookup map[string]stitched) string {
	found := false
	for _, r := range e.Replies {
		if _, ok := lookup[r.Key()]; ok {
			found = true
			break
		}
	}
	if !found {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nTHREAD:\n")
	for _, r := range e.Replies {
		info, ok := lookup[r.Key()]
		if !ok {
			continue
		}
		b.WriteString(replyFrame + "\n" + info.realName + "\n")
		b.WriteString(format.ToHTML(info.text, x.users) + "\n" + replyFrame)
	}
	return b.String()
}

// truncate hard-caps text at max runes. Not word-aware: the remote message
// size limit is what matters here.
func truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
