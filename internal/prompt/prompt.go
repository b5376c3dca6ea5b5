// Package prompt shapes session history and attachments into provider input.
package prompt

import (
	"fmt"

	"github.com/comigor/thelp-go/internal/history"
)

// DefaultWindow is how many trailing messages are sent as context.
const DefaultWindow = 6

// Assistant role tags per backend family.
const (
	RoleUser            = "user"
	RoleAssistantOpenAI = "assistant"
	RoleAssistantGemini = "model"
)

// Turn is one role-tagged entry of provider context.
type Turn struct {
	Role    string
	Content string
}

// Build keeps the last window messages of msgs, oldest first, and maps them
// to turns. Assistant messages take assistantRole. A non-positive window uses
// DefaultWindow.
func Build(msgs []history.Message, assistantRole string, window int) []Turn {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == history.RoleAssistant {
			role = assistantRole
		}
		turns = append(turns, Turn{Role: role, Content: m.PromptText()})
	}
	return turns
}

// SystemPrompt is prepended to every provider call.
const SystemPrompt = `You are T-Help, an expert Telkom technical support assistant. Your role is to help customers troubleshoot technical issues with their Telkom services including:

- Internet connectivity problems (Wi-Fi, ADSL/Fiber)
- Router configuration
- Mobile network problems
- Email setup and device configuration
- Network speed and performance issues
- Billing and account-related technical queries

Guidelines:
1. Be helpful, patient and professional.
2. Give step-by-step troubleshooting instructions and ask clarifying questions when needed.
3. Escalate complex issues to a human agent when appropriate.
4. Keep responses concise but complete.
5. Never ask for passwords or other sensitive data.

When analyzing files or images:
- Screenshots: identify error messages and provide solutions.
- Network configs: analyze settings and suggest corrections.
- Bills/Documents: help understand technical service details.

You support English, Afrikaans and Zulu. Respond in the same language as the customer's query.`

// DefaultImagePrompt accompanies images sent without text.
const DefaultImagePrompt = "Analyze this image for technical issues or information that might help with Telkom technical support."

// DefaultAudioPrompt accompanies audio sent without text.
const DefaultAudioPrompt = "Listen to this voice message, then answer the customer's technical support request."

// PDF wraps extracted document text, already truncated, with the user's message.
func PDF(message, documentText string) string {
	return fmt.Sprintf(`User message: %s

PDF Content Summary:
%s

Please analyze this document and help with any Telkom technical issues mentioned.`, message, documentText)
}
