// Package demo is the provider used when no model API key is configured.
// It answers from a handful of canned replies chosen by keyword.
package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/comigor/thelp-go/internal/lang"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/prompt"
)

// Model is reported as the model of every demo reply.
const Model = "demo"

const (
	greetingReply = "Hello! I'm T-Help, your Telkom technical assistant. I'm currently running in demo mode. For full AI capabilities, please configure an API key. How can I help you today?"

	internetReply = `I understand you're having internet connectivity issues. Let me help you troubleshoot this step by step:

1. Please check that all cables are securely connected.
2. Try restarting your router by unplugging it for 30 seconds.
3. Check whether other devices can connect to the internet.

Can you tell me which step you'd like to try first?`

	voiceReply = "I've received your voice message. In full mode, I would transcribe and analyze your audio. Currently running in demo mode."

	defaultReply = "I'm here to help with your Telkom technical issues. Currently running in demo mode; for full AI capabilities, please configure an API key. Can you describe the problem you're experiencing?"
)

var (
	internetWords = []string{"internet", "connection", "wifi", "wi-fi", "slow", "not working"}
	greetingWords = []string{"hello", "hi", "help", "start"}
)

// Provider is a network-free llm.Provider.
type Provider struct{}

// New returns a demo provider.
func New() *Provider { return &Provider{} }

// Name implements llm.Provider.
func (*Provider) Name() string { return "demo" }

func reply(text, message string) llm.Result {
	r := llm.Success(text, Model)
	r.Language = lang.Detect(message)
	return r
}

func fileReply(kind string) string {
	return fmt.Sprintf("I've received your %s. In full mode, I would analyze this content for you. Currently running in demo mode.", kind)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// AskText implements llm.Provider.
func (*Provider) AskText(_ context.Context, message string, _ []prompt.Turn) llm.Result {
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, "analyze this "):
		kind, _, _ := strings.Cut(strings.TrimPrefix(lower, "analyze this "), ":")
		return reply(fileReply(kind), message)
	case containsAny(lower, internetWords):
		return reply(internetReply, message)
	case containsAny(lower, greetingWords):
		return reply(greetingReply, message)
	default:
		return reply(defaultReply, message)
	}
}

// AskImage implements llm.Provider.
func (*Provider) AskImage(_ context.Context, _, message string, _ []prompt.Turn) llm.Result {
	return reply(fileReply("image"), message)
}

// AskAudio implements llm.Provider.
func (*Provider) AskAudio(_ context.Context, _, message string, _ []prompt.Turn) llm.Result {
	return reply(voiceReply, message)
}

// AskPDF implements llm.Provider.
func (*Provider) AskPDF(_ context.Context, _, message string, _ []prompt.Turn) llm.Result {
	return reply(fileReply("pdf"), message)
}

// Status implements llm.StatusReporter.
func (p *Provider) Status(context.Context) (llm.Status, error) {
	return llm.Status{Provider: p.Name(), Available: true, Models: map[string]llm.ModelStatus{}}, nil
}
