// Conversation summarization for history that no longer fits the window
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// SummaryInstruction is sent as the system message of every summary request.
const SummaryInstruction = "Summarize the following conversation briefly. Focus on key facts, decisions and context."

// SummarizerConfig holds the sampling settings for summary requests.
type SummarizerConfig struct {
	Temperature float32
	MaxTokens   int
}

// DefaultSummarizerConfig returns the settings used when none are configured.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		Temperature: 0.3,
		MaxTokens:   200,
	}
}

// Summarizer compresses a batch of old messages into one summary text.
type Summarizer struct {
	chatModel model.BaseChatModel
	config    SummarizerConfig
	logger    *slog.Logger
}

// NewSummarizer creates a summarizer backed by chatModel.
func NewSummarizer(chatModel model.BaseChatModel, cfg SummarizerConfig) *Summarizer {
	return &Summarizer{
		chatModel: chatModel,
		config:    cfg,
		logger:    utils.GetLogger(),
	}
}

// Summarize returns the model's summary of messages verbatim. An empty batch
// returns "" without calling the model.
func (s *Summarizer) Summarize(ctx context.Context, messages []db.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	input := []*schema.Message{
		schema.SystemMessage(SummaryInstruction),
		schema.UserMessage(BuildTranscript(messages)),
	}

	resp, err := s.chatModel.Generate(ctx, input,
		model.WithTemperature(s.config.Temperature),
		model.WithMaxTokens(s.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("summary generation returned no message")
	}

	s.logger.Debug("Generated conversation summary",
		"summarizedMessages", len(messages),
		"summaryChars", len(resp.Content))

	return resp.Content, nil
}

// BuildTranscript renders messages as "role: content" lines in log order.
func BuildTranscript(messages []db.Message) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}
