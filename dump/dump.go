// Package dump reads a Slack export from a local directory or a Cloud
// Storage bucket. The layout is owned by the export tool: users.json at the
// root and one YYYY-MM-DD.json file per day under each channel directory.
package dump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"

	"slack-relay/pkg/relay"
)

const usersFile = "users.json"

// NotFoundError indicates a dump file that does not exist.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dump file not found: %s", e.Key)
}

// IsNotFound checks if an error is a missing-file error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ParseError indicates a dump file that is not a valid record sequence.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse dump file %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParse checks if an error is a malformed-file error.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Source reads export files from either a local path or a bucket.
type Source struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// NewLocal creates a source over a local dump directory.
func NewLocal(dir string, logger *slog.Logger) *Source {
	return &Source{localPath: dir, logger: logger}
}

// NewBucket creates a source over a Cloud Storage bucket holding the dump.
func NewBucket(client *storage.Client, bucket string, logger *slog.Logger) *Source {
	return &Source{client: client, bucket: bucket, logger: logger}
}

// Users reads users.json and builds the id to nickname directory.
func (s *Source) Users(ctx context.Context) (relay.Directory, error) {
	data, err := s.read(ctx, usersFile)
	if err != nil {
		return nil, err
	}

	var users []relay.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, &ParseError{Key: usersFile, Err: err}
	}

	dir := make(relay.Directory, len(users))
	for _, u := range users {
		dir[u.ID] = u.Name
	}

	s.logger.Info("User directory loaded", "users", len(dir))
	return dir, nil
}

// Days lists the per-day file names of a channel in lexicographic order.
// Filenames are dates, so this equals chronological order.
func (s *Source) Days(ctx context.Context, channel string) ([]string, error) {
	var names []string

	if s.localPath != "" {
		entries, err := os.ReadDir(filepath.Join(s.localPath, channel))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &NotFoundError{Key: channel}
			}
			return nil, fmt.Errorf("read channel directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			names = append(names, entry.Name())
		}
	} else {
		prefix := channel + "/"
		it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("iterate bucket: %w", err)
			}
			name := strings.TrimPrefix(attrs.Name, prefix)
			if !strings.HasSuffix(name, ".json") || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}

	sort.Strings(names)
	s.logger.Info("Channel day files listed", "channel", channel, "days", len(names))
	return names, nil
}

// ReadDay decodes one per-day export file of a channel.
func (s *Source) ReadDay(ctx context.Context, channel, name string) ([]relay.Entry, error) {
	key := path.Join(channel, name)
	data, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}

	var entries []relay.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}
	return entries, nil
}

// read fetches one object by its dump-relative key.
func (s *Source) read(ctx context.Context, key string) ([]byte, error) {
	// Local filesystem dump
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, filepath.FromSlash(key)))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &NotFoundError{Key: key}
			}
			return nil, fmt.Errorf("read from local dump: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(&NotFoundError{Key: key})
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying dump read after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, fmt.Errorf("read %s after retries: %w", key, err)
	}

	return data, nil
}
