package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	mockReplyPrefix   = "(mock) Echo: "
	mockSummaryPrefix = "(mock) Summary: "
	mockEchoLimit     = 200
)

// EchoChatModel is the offline provider used when no LLM is configured.
// Replies echo the last user message; summary requests get a deterministic
// digest of the transcript.
type EchoChatModel struct{}

var _ model.BaseChatModel = (*EchoChatModel)(nil)

// NewEchoChatModel returns the offline echo model.
func NewEchoChatModel() *EchoChatModel {
	return &EchoChatModel{}
}

// Generate answers with an echo reply or, for summary requests, a transcript digest.
func (e *EchoChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	last := lastUserContent(input)
	var content string
	if isSummaryRequest(input) {
		content = mockSummaryPrefix + strings.Join(strings.Fields(utils.Truncate(last, mockEchoLimit)), " ")
	} else {
		content = mockReplyPrefix + utils.Truncate(last, mockEchoLimit)
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage: &schema.TokenUsage{
				PromptTokens:     estimatePromptTokens(input),
				CompletionTokens: EstimateTokens(content),
				TotalTokens:      estimatePromptTokens(input) + EstimateTokens(content),
			},
		},
	}, nil
}

// Stream returns the Generate result as a single-chunk stream.
func (e *EchoChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := e.Generate(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("mock stream: %w", err)
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func lastUserContent(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

func isSummaryRequest(input []*schema.Message) bool {
	return len(input) > 0 && input[0] != nil &&
		input[0].Role == schema.System && input[0].Content == SummaryInstruction
}

func estimatePromptTokens(input []*schema.Message) int {
	total := 0
	for _, msg := range input {
		if msg != nil {
			total += EstimateTokens(msg.Content)
		}
	}
	return total
}
