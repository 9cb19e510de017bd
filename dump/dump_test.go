package dump

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestUsers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", `[
		{"id": "U1", "name": "alice", "deleted": false},
		{"id": "U2", "name": "bob"}
	]`)

	s := NewLocal(dir, testLogger())
	users, err := s.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users["U1"] != "alice" || users["U2"] != "bob" {
		t.Errorf("directory = %v", users)
	}
}

func TestUsersMissingFile(t *testing.T) {
	s := NewLocal(t.TempDir(), testLogger())

	_, err := s.Users(context.Background())
	if err == nil {
		t.Fatal("expected error for missing users.json")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
	if IsParse(err) {
		t.Errorf("missing file should not classify as parse error")
	}
}

func TestUsersMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", `{"not": "a list"`)

	s := NewLocal(dir, testLogger())
	_, err := s.Users(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed users.json")
	}
	if !IsParse(err) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestDaysSorted(t *testing.T) {
	dir := t.TempDir()
	channel := filepath.Join(dir, "_jobs")
	if err := os.Mkdir(channel, 0o755); err != nil {
		t.Fatal(err)
	}
	// Written out of order on purpose.
	writeFile(t, channel, "2021-01-02.json", "[]")
	writeFile(t, channel, "2021-01-01.json", "[]")
	writeFile(t, channel, "notes.txt", "ignore me")

	s := NewLocal(dir, testLogger())
	days, err := s.Days(context.Background(), "_jobs")
	if err != nil {
		t.Fatalf("Days() error: %v", err)
	}

	want := []string{"2021-01-01.json", "2021-01-02.json"}
	if len(days) != len(want) {
		t.Fatalf("got %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("days[%d] = %q, want %q", i, days[i], want[i])
		}
	}
}

func TestDaysMissingChannel(t *testing.T) {
	s := NewLocal(t.TempDir(), testLogger())

	_, err := s.Days(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestReadDay(t *testing.T) {
	dir := t.TempDir()
	channel := filepath.Join(dir, "_jobs")
	if err := os.Mkdir(channel, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, channel, "2021-01-01.json", `[
		{"user": "U1", "user_profile": {"real_name": "Alice A"}, "text": "hi", "ts": "1609459200.000100",
		 "reply_count": 2, "reactions": [{"name": "+1"}],
		 "replies": [{"user": "U2", "ts": "1609459300.000200"}]}
	]`)

	s := NewLocal(dir, testLogger())
	entries, err := s.ReadDay(context.Background(), "_jobs", "2021-01-01.json")
	if err != nil {
		t.Fatalf("ReadDay() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.User != "U1" || e.UserProfile == nil || e.UserProfile.RealName != "Alice A" {
		t.Errorf("author fields not decoded: %+v", e)
	}
	if e.Key() != "U1_1609459200.000100" {
		t.Errorf("Key() = %q", e.Key())
	}
	if !e.Qualifies() {
		t.Error("entry with replies, reactions, and profile should qualify")
	}
	if len(e.Replies) != 1 || e.Replies[0].Key() != "U2_1609459300.000200" {
		t.Errorf("replies not decoded: %+v", e.Replies)
	}
}

func TestReadDayMalformed(t *testing.T) {
	dir := t.TempDir()
	channel := filepath.Join(dir, "_jobs")
	if err := os.Mkdir(channel, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, channel, "2021-01-01.json", "not json at all")

	s := NewLocal(dir, testLogger())
	_, err := s.ReadDay(context.Background(), "_jobs", "2021-01-01.json")
	if !IsParse(err) {
		t.Errorf("expected parse error, got %v", err)
	}
}
