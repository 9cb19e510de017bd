package telegram

import (
	"context"
	"log/slog"
)

// MockSender logs messages instead of sending them, for dry runs without
// bot credentials.
type MockSender struct {
	logger *slog.Logger
}

// NewMockSender creates a new mock sender.
func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{logger: logger}
}

// Send logs the message instead of sending it.
func (m *MockSender) Send(_ context.Context, text string, html bool) error {
	m.logger.Info("MOCK SEND",
		"html", html,
		"text_length", len(text))
	return nil
}

// Me reports a placeholder bot identity.
func (m *MockSender) Me(_ context.Context) (string, error) {
	return "mock-bot", nil
}
