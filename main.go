// Package main implements slack-relay, a batch tool that reads an archived
// Slack channel export, selects notable posts, and relays them to a Telegram
// chat via a bot. It runs once over a fixed dump and exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"slack-relay/config"
	"slack-relay/deliver"
	"slack-relay/dump"
	"slack-relay/extract"
	"slack-relay/telegram"
)

const defaultConfigFile = "config.yml"

var (
	dryRun  bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "slack-relay",
	Short: "Relay notable posts from a Slack export dump to a Telegram chat",
	Long: `slack-relay reads a local (or bucket-hosted) Slack export dump, picks the
posts that gathered replies and reactions, converts Slack markup to
Telegram HTML, and sends each post to a bot chat with rate-limit handling.`,
}

var runCmd = &cobra.Command{
	Use:   "run [config-file]",
	Short: "Run the export-then-send pipeline once",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return run(context.Background(), configPath(args), newLogger())
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping [config-file]",
	Short: "Verify the bot token by calling getMe",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return ping(context.Background(), configPath(args), newLogger())
	},
}

func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultConfigFile
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func run(ctx context.Context, configFile string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	source, cleanup, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	users, err := source.Users(ctx)
	if err != nil {
		return fmt.Errorf("load user directory: %w", err)
	}

	extractor := extract.New(source, users, extract.Options{
		Channel:    cfg.Data.Channel,
		AddReplies: cfg.Relay.AddReplies,
		MaxLength:  cfg.Relay.MaxLength,
		MinLength:  cfg.Relay.MinLength,
	}, logger)

	posts, err := extractor.Posts(ctx)
	if err != nil {
		return fmt.Errorf("extract posts: %w", err)
	}
	if len(posts) == 0 {
		logger.Info("No qualifying posts in dump, nothing to send", "channel", cfg.Data.Channel)
		return nil
	}

	loop := deliver.New(sender, users, deliver.Options{
		Mode:        deliver.Mode(cfg.Relay.Mode),
		SendAsHTML:  cfg.SendAsHTML(),
		Pace:        cfg.Relay.Pace.Std(),
		RetryPause:  cfg.Relay.RetryPause.Std(),
		SendTimeout: cfg.Relay.SendTimeout.Std(),
	}, logger)

	return loop.Run(ctx, posts)
}

func ping(ctx context.Context, configFile string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	token, err := cfg.Token()
	if err != nil {
		return err
	}

	bot := telegram.NewBot(token, cfg.Telegram.ChatID, logger)
	username, err := bot.Me(ctx)
	if err != nil {
		return fmt.Errorf("verify bot token: %w", err)
	}

	logger.Info("Bot token verified", "username", username, "chat_id", cfg.Telegram.ChatID)
	return nil
}

// newSource builds the dump source: a Cloud Storage bucket when configured,
// the local directory otherwise.
func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dump.Source, func(), error) {
	if cfg.Data.Bucket == "" {
		return dump.NewLocal(cfg.Data.PathToDump, logger), func() {}, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize storage client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}
	return dump.NewBucket(client, cfg.Data.Bucket, logger), cleanup, nil
}

func newSender(cfg *config.Config, logger *slog.Logger) (deliver.Sender, error) {
	if dryRun {
		logger.Info("Dry-run mode enabled, nothing will be sent")
		return telegram.NewMockSender(logger), nil
	}

	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	return telegram.NewBot(token, cfg.Telegram.ChatID, logger), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and format posts but only log the sends")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}
