package service

import (
	"fmt"
	"strings"

	"github.com/botconsulting/botgpt/pkg/db"
	"github.com/botconsulting/botgpt/pkg/utils"
	"github.com/cloudwego/eino/schema"
)

// SystemPrompt opens every reply request.
const SystemPrompt = "You are BOT GPT, a helpful, concise and professional AI assistant."

const fallbackQuoteLimit = 120

// BuildPrompt assembles a reply request: system prompt, summary, retrieved
// context, the recent window in log order and finally the new user text.
func BuildPrompt(summary string, chunks []string, recent []db.Message, userText string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(recent)+4)
	messages = append(messages, schema.SystemMessage(SystemPrompt))

	if summary != "" {
		messages = append(messages, schema.SystemMessage("Conversation summary: "+summary))
	}
	if len(chunks) > 0 {
		messages = append(messages, schema.SystemMessage(
			"Use the following context to answer:\n"+strings.Join(chunks, "\n")))
	}

	for _, msg := range recent {
		messages = append(messages, &schema.Message{
			Role:    schema.RoleType(msg.Role),
			Content: msg.Content,
		})
	}

	messages = append(messages, schema.UserMessage(userText))
	return messages
}

// FallbackReply is stored in place of a reply when the model call fails.
func FallbackReply(userText string) string {
	return fmt.Sprintf("(error) LLM call failed; using fallback response for: %s",
		utils.Truncate(userText, fallbackQuoteLimit))
}
