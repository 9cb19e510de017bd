// Package relay contains the core domain types for the Slack dump relay.
package relay

import "encoding/json"

// Entry represents a single message record from a per-day export file.
type Entry struct {
	User        string          `json:"user"`
	UserProfile *UserProfile    `json:"user_profile,omitempty"`
	Text        string          `json:"text"`
	TS          string          `json:"ts"`
	ReplyCount  int             `json:"reply_count,omitempty"`
	Reactions   json.RawMessage `json:"reactions,omitempty"` // Present and non-empty when anyone reacted
	Replies     []Reply         `json:"replies,omitempty"`
}

// UserProfile holds the author profile attached to an export entry.
type UserProfile struct {
	RealName string `json:"real_name"`
}

// Reply identifies one thread reply under an entry.
type Reply struct {
	User string `json:"user"`
	TS   string `json:"ts"`
}

// Key returns the identity key for an entry: user id and timestamp joined.
func (e *Entry) Key() string {
	return e.User + "_" + e.TS
}

// Key returns the identity key for a reply, comparable with Entry keys.
func (r *Reply) Key() string {
	return r.User + "_" + r.TS
}

// HasReactions reports whether the entry carries a non-empty reactions field.
func (e *Entry) HasReactions() bool {
	s := string(e.Reactions)
	return s != "" && s != "null" && s != "[]"
}

// Qualifies reports whether an entry is a notable post rather than chatter:
// it must have replies, reactions, and an author profile.
func (e *Entry) Qualifies() bool {
	return e.ReplyCount > 0 && e.HasReactions() && e.UserProfile != nil
}

// User mirrors one record of users.json.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Directory maps Slack user ids to display nicknames. Unknown ids are not
// present; lookups fall back to a placeholder at format time.
type Directory map[string]string

// Post is a composed, send-ready message derived from a qualifying entry.
type Post struct {
	Date string // Filename stem of the day file the entry came from
	Text string // Composed text, already capped at the configured maximum
}
