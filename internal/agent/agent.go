// Package agent runs one chat turn: it records the user message, builds the
// context window, dispatches to the provider and records the reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/history"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/prompt"
)

// ErrEmptyContent is returned for a turn with neither text nor attachment.
var ErrEmptyContent = errors.New("message has no text or attachment")

const (
	attachmentMarker = "📎 "
	voiceMarker      = "🎵 Voice message"
)

// TurnInput is one user submission.
type TurnInput struct {
	// SessionID is generated when empty.
	SessionID string
	Text      string
	// Modality is derived from AttachmentName when empty. Voice notes set
	// history.ModalityVoice explicitly.
	Modality       history.Modality
	AttachmentPath string
	AttachmentName string
}

// TurnOutput is the recorded exchange.
type TurnOutput struct {
	SessionID        string
	UserMessage      history.Message
	AssistantMessage history.Message
	Result           llm.Result
}

// Options tunes an Agent.
type Options struct {
	// ContextWindow is how many earlier messages are sent with each turn.
	ContextWindow int
	// Tokens, when set, is used to log the size of each request.
	Tokens       prompt.TokenCounter
	SystemPrompt string
}

// Agent is safe for concurrent use.
type Agent struct {
	provider      llm.Provider
	store         *history.Store
	window        int
	assistantRole string
	tokens        prompt.TokenCounter
	systemPrompt  string
}

// New creates an agent answering with provider and recording into store.
func New(provider llm.Provider, store *history.Store, opts Options) *Agent {
	a := &Agent{
		provider:      provider,
		store:         store,
		window:        opts.ContextWindow,
		assistantRole: prompt.RoleAssistantOpenAI,
		tokens:        opts.Tokens,
		systemPrompt:  opts.SystemPrompt,
	}
	if a.window <= 0 {
		a.window = prompt.DefaultWindow
	}
	if provider.Name() == "gemini" {
		a.assistantRole = prompt.RoleAssistantGemini
	}
	if a.systemPrompt == "" {
		a.systemPrompt = prompt.SystemPrompt
	}
	return a
}

// Provider returns the backend the agent dispatches to.
func (a *Agent) Provider() llm.Provider { return a.provider }

// History returns the whole session, oldest first. Unknown sessions are empty.
func (a *Agent) History(sessionID string) []history.Message {
	msgs := a.store.History(sessionID, 0)
	if msgs == nil {
		return []history.Message{}
	}
	return msgs
}

// HandleTurn validates in, appends the user message, asks the provider and
// appends its reply. Errors are returned only for invalid input, before the
// session is touched; provider failures become an apologetic reply.
func (a *Agent) HandleTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	text := strings.TrimSpace(in.Text)
	userMsg, ask, err := shape(in, text)
	if err != nil {
		return nil, err
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := logger.FromContext(ctx).With("session_id", sessionID)

	userMsg.CreatedAt = time.Now()
	userMsg.Seq = a.store.Append(sessionID, userMsg)
	turns := a.contextWindow(sessionID, userMsg.Seq)
	if a.tokens != nil {
		log.Debug("request size", "tokens", a.tokens.CountTurns(a.systemPrompt, turns), "turns", len(turns))
	}

	res := a.dispatch(ctx, userMsg, ask, turns)
	if !res.OK() {
		log.Warn("turn answered with failure text", "kind", res.Failure.Kind, "error", res.Failure.Cause)
	} else {
		log.Info("turn answered", "modality", userMsg.Modality, "model", res.Model, "language", res.Language)
	}

	reply := history.Message{
		Role:      history.RoleAssistant,
		Content:   res.Text,
		Modality:  history.ModalityText,
		CreatedAt: time.Now(),
	}
	reply.Seq = a.store.Append(sessionID, reply)

	return &TurnOutput{SessionID: sessionID, UserMessage: userMsg, AssistantMessage: reply, Result: res}, nil
}

// shape validates the input and builds the stored user message and the text
// the provider is asked.
func shape(in TurnInput, text string) (history.Message, string, error) {
	msg := history.Message{Role: history.RoleUser}

	if in.AttachmentPath == "" {
		if text == "" {
			return msg, "", ErrEmptyContent
		}
		msg.Content = text
		msg.Modality = history.ModalityText
		return msg, text, nil
	}

	name := in.AttachmentName
	if name == "" {
		name = filepath.Base(in.AttachmentPath)
	}
	modality := in.Modality
	if modality == "" {
		var err error
		if modality, err = attachment.Classify(name); err != nil {
			return msg, "", err
		}
	}
	if _, err := os.Stat(in.AttachmentPath); err != nil {
		return msg, "", fmt.Errorf("%w: %s", attachment.ErrNotFound, name)
	}

	msg.Modality = modality
	msg.AttachmentPath = in.AttachmentPath
	msg.TextContent = text

	audio := modality == history.ModalityAudio || modality == history.ModalityVoice
	switch {
	case text != "":
		msg.Content = text + "\n" + attachmentMarker + name
	case audio:
		msg.Content = voiceMarker
	default:
		msg.Content = attachmentMarker + name
	}

	// Audio goes to the provider with only what the user typed; the provider
	// supplies its own instruction for bare voice notes.
	if text != "" || audio {
		return msg, text, nil
	}
	return msg, fmt.Sprintf("Analyze this %s: %s", modality, name), nil
}

// contextWindow returns the provider turns preceding seq. A concurrent turn
// on the same session may have appended after seq, so messages are filtered
// by seq before the window is applied.
func (a *Agent) contextWindow(sessionID string, seq int) []prompt.Turn {
	var prior []history.Message
	for _, m := range a.store.History(sessionID, 0) {
		if m.Seq < seq {
			prior = append(prior, m)
		}
	}
	return prompt.Build(prior, a.assistantRole, a.window)
}

func (a *Agent) dispatch(ctx context.Context, msg history.Message, ask string, turns []prompt.Turn) llm.Result {
	switch msg.Modality {
	case history.ModalityImage:
		return a.provider.AskImage(ctx, msg.AttachmentPath, ask, turns)
	case history.ModalityAudio, history.ModalityVoice:
		return a.provider.AskAudio(ctx, msg.AttachmentPath, ask, turns)
	case history.ModalityPDF:
		return a.provider.AskPDF(ctx, msg.AttachmentPath, ask, turns)
	default:
		return a.provider.AskText(ctx, ask, turns)
	}
}
