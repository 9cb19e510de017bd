// Package deliver sends extracted posts to the bot endpoint, one request per
// post, with rate-limit handling.
//
// Two strategies exist because Telegram throttles them differently: the paced
// sequential loop spaces requests out and recovers from flood control, the
// concurrent loop fires everything at once and bounds each send with a
// timeout.
package deliver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"slack-relay/format"
	"slack-relay/pkg/relay"
	"slack-relay/telegram"
)

// Mode selects the delivery strategy.
type Mode string

const (
	// ModePaced sends posts one at a time with a pause after each.
	ModePaced Mode = "paced"
	// ModeConcurrent dispatches all posts at once, each with its own
	// send timeout and no retry.
	ModeConcurrent Mode = "concurrent"
)

// Defaults for the delivery options.
const (
	DefaultPace        = time.Second
	DefaultRetryPause  = 2 * time.Minute
	DefaultSendTimeout = 30 * time.Second
)

// Sender is the opaque send boundary. Implementations classify failures via
// the telegram error predicates.
type Sender interface {
	Send(ctx context.Context, text string, html bool) error
}

// Options control the delivery strategy.
type Options struct {
	Mode        Mode
	SendAsHTML  bool          // Try the formatted send first
	Pace        time.Duration // Paced: mandatory pause after every post
	RetryPause  time.Duration // Paced: sleep before the single rate-limit retry
	SendTimeout time.Duration // Concurrent: per-send wait budget
}

// Loop delivers posts to a sender. Per-post failures never abort the batch.
type Loop struct {
	sender Sender
	users  relay.Directory
	logger *slog.Logger
	opts   Options
}

// New creates a delivery loop. Zero durations in opts fall back to defaults.
func New(sender Sender, users relay.Directory, opts Options, logger *slog.Logger) *Loop {
	if opts.Pace <= 0 {
		opts.Pace = DefaultPace
	}
	if opts.RetryPause <= 0 {
		opts.RetryPause = DefaultRetryPause
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModePaced
	}
	return &Loop{
		sender: sender,
		users:  users,
		logger: logger,
		opts:   opts,
	}
}

// Run sends every post and returns once all sends have finished. The only
// error it reports is cancellation; individual outcomes are logged as the
// run proceeds.
func (l *Loop) Run(ctx context.Context, posts []relay.Post) error {
	l.logger.Info("Delivery starting",
		"mode", string(l.opts.Mode),
		"posts", len(posts),
		"send_as_html", l.opts.SendAsHTML)

	if l.opts.Mode == ModeConcurrent {
		l.runConcurrent(ctx, posts)
		return nil
	}
	return l.runPaced(ctx, posts)
}

func (l *Loop) runPaced(ctx context.Context, posts []relay.Post) error {
	for i, post := range posts {
		select {
		case <-ctx.Done():
			l.logger.Info("Context cancelled, stopping delivery", "sent", i, "error", ctx.Err())
			return ctx.Err()
		default:
		}

		l.sendWithRecovery(ctx, post, true)

		// Mandatory pause regardless of outcome, to stay under flood
		// control in the first place.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opts.Pace):
		}
	}
	return nil
}

func (l *Loop) runConcurrent(ctx context.Context, posts []relay.Post) {
	var wg sync.WaitGroup
	for _, post := range posts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, l.opts.SendTimeout)
			defer cancel()
			l.sendWithRecovery(sendCtx, post, false)
		}()
	}
	wg.Wait()
}

// sendWithRecovery performs one post's delivery: the formatted send, the
// single rate-limit retry (paced mode only), and the unformatted fallback on
// a content rejection.
func (l *Loop) sendWithRecovery(ctx context.Context, post relay.Post, retryRateLimit bool) {
	text := post.Text
	html := l.opts.SendAsHTML
	if html {
		text = format.ToHTML(text, l.users)
	}

	err := l.send(ctx, text, html, retryRateLimit)
	if err == nil {
		l.logger.Info("Post delivered", "date", post.Date, "html", html)
		return
	}

	if telegram.IsBadRequest(err) {
		// The formatted text tripped the HTML parser on the far side.
		// Fall back to the raw post once; if that fails too, give up.
		l.logger.Warn("Formatted send rejected, retrying unformatted", "date", post.Date, "error", err)
		if fallbackErr := l.sender.Send(ctx, post.Text, false); fallbackErr != nil {
			l.logger.Warn("Unformatted fallback failed, post skipped", "date", post.Date, "error", fallbackErr)
			return
		}
		l.logger.Info("Post delivered", "date", post.Date, "html", false)
		return
	}

	l.logger.Warn("Post delivery failed, post skipped", "date", post.Date, "error", err)
}

// send performs the network call. When retryRateLimit is set, a flood-control
// rejection is retried exactly once after the long pause; anything else is
// returned as-is.
func (l *Loop) send(ctx context.Context, text string, html, retryRateLimit bool) error {
	if !retryRateLimit {
		return l.sender.Send(ctx, text, html)
	}

	return retry.Do(
		func() error {
			return l.sender.Send(ctx, text, html)
		},
		retry.Attempts(2),
		retry.Delay(l.opts.RetryPause),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(telegram.IsRateLimited),
		retry.OnRetry(func(n uint, err error) {
			l.logger.Info("Rate limited, pausing before retry",
				"attempt", n,
				"pause", l.opts.RetryPause.String(),
				"error", err)
		}),
	)
}
