package service

import (
	"context"
	"log/slog"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/utils"
)

// DefaultWindowSize is the number of newest messages sent verbatim.
const DefaultWindowSize = 10

// MessageSummarizer compresses old messages into a summary.
type MessageSummarizer interface {
	Summarize(ctx context.Context, messages []db.Message) (string, error)
}

// SummaryWriter persists a replacement summary.
type SummaryWriter interface {
	UpdateSummary(ctx context.Context, conversationID, summary string) error
}

// Window is the verbatim tail of the log plus the conversation as it should be
// presented to the model.
type Window struct {
	Recent       []db.Message
	Conversation db.Conversation
	// Summarized is true when a new summary replaced the stored one.
	Summarized bool
}

// WindowManager splits a log into a verbatim recent window and an older prefix
// that is folded into the conversation summary.
type WindowManager struct {
	size       int
	summarizer MessageSummarizer
	writer     SummaryWriter
	logger     *slog.Logger
}

// NewWindowManager creates a manager keeping size messages verbatim.
// size < 1 falls back to DefaultWindowSize.
func NewWindowManager(size int, summarizer MessageSummarizer, writer SummaryWriter) *WindowManager {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &WindowManager{
		size:       size,
		summarizer: summarizer,
		writer:     writer,
		logger:     utils.GetLogger(),
	}
}

// Size returns the window size.
func (w *WindowManager) Size() int {
	return w.size
}

// Prepare returns the newest messages of log and, when the log overflows the
// window, a conversation whose summary covers everything older. The summary is
// recomputed from the whole prefix and persisted before returning. A failed
// summary or write keeps the previous summary.
func (w *WindowManager) Prepare(ctx context.Context, conv db.Conversation, log []db.Message) Window {
	if len(log) <= w.size {
		return Window{Recent: log, Conversation: conv}
	}

	split := len(log) - w.size
	old, recent := log[:split], log[split:]
	window := Window{Recent: recent, Conversation: conv}

	summary, err := w.summarizer.Summarize(ctx, old)
	if err != nil {
		w.logger.Warn("Summarization failed, keeping previous summary",
			"conversationID", conv.ID,
			"oldMessages", len(old),
			"error", err)
		return window
	}

	if err := w.writer.UpdateSummary(ctx, conv.ID, summary); err != nil {
		w.logger.Warn("Failed to persist summary, keeping previous summary",
			"conversationID", conv.ID,
			"error", err)
		return window
	}

	window.Conversation.Summary = &summary
	window.Summarized = true

	w.logger.Info("Conversation summary replaced",
		"conversationID", conv.ID,
		"summarizedMessages", len(old),
		"recentMessages", len(recent))

	return window
}
