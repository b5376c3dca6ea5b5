// Package openaicompat implements llm.Provider on top of the OpenAI chat
// completions API, which OpenRouter and most proxies also speak.
package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/lang"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/prompt"
)

// DefaultModels are used for classes left empty in Options.Models.
var DefaultModels = llm.Models{
	Primary:       "gpt-5",
	Fallback:      "gpt-4.1",
	CostEfficient: "gpt-4.1-mini",
	Fast:          "gpt-4.1-nano",
	Vision:        "gpt-5",
	Audio:         openai.Whisper1,
}

// DefaultPDFCharLimit bounds the extracted PDF text sent to the model.
const DefaultPDFCharLimit = 8000

var errUnavailable = fmt.Errorf("%w: provider marked unavailable", llm.ErrQuota)

// Options configures a Provider.
type Options struct {
	Models       llm.Models
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	PDFCharLimit int
	// ProbeOnStart sends a 1-token completion from New to find out whether
	// the account has quota left.
	ProbeOnStart bool
	// ReprobeAfter lets a quota-tripped provider try again after this long.
	// Zero keeps it unavailable until restart.
	ReprobeAfter time.Duration
}

// Provider talks to an OpenAI-compatible endpoint.
type Provider struct {
	client       Client
	models       llm.Models
	systemPrompt string
	maxTokens    int
	temperature  float32
	pdfCharLimit int
	avail        *availability
}

// New creates a provider. With ProbeOnStart it makes one network call to
// decide whether to start available.
func New(ctx context.Context, client Client, opts Options) *Provider {
	p := &Provider{
		client:       client,
		models:       opts.Models.Merge(DefaultModels),
		systemPrompt: opts.SystemPrompt,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
		pdfCharLimit: opts.PDFCharLimit,
	}
	if p.systemPrompt == "" {
		p.systemPrompt = prompt.SystemPrompt
	}
	if p.pdfCharLimit <= 0 {
		p.pdfCharLimit = DefaultPDFCharLimit
	}

	available := true
	if opts.ProbeOnStart {
		if err := p.probe(ctx); err != nil {
			if llm.IsQuota(err) {
				logger.L.Warn("provider has quota/billing issues, running in fallback mode", "error", err)
				available = false
			} else {
				logger.L.Warn("provider probe failed", "error", err)
			}
		} else {
			logger.L.Info("provider probe succeeded", "model", p.probeModel())
		}
	}
	p.avail = newAvailability(available, opts.ReprobeAfter)
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

// Available reports whether calls currently reach the network.
func (p *Provider) Available() bool { return p.avail.available() }

func (p *Provider) probeModel() string {
	if p.models.CostEfficient != "" {
		return p.models.CostEfficient
	}
	return p.models.Primary
}

func (p *Provider) probe(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.probeModel(),
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return markQuota(err)
}

// gate decides whether a call may reach the network.
func (p *Provider) gate(ctx context.Context) bool {
	if p.avail.available() {
		return true
	}
	if !p.avail.claimReprobe() {
		return false
	}
	if err := p.probe(ctx); err != nil {
		logger.FromContext(ctx).Warn("provider re-probe failed", "error", err)
		return false
	}
	p.avail.recover()
	return true
}

func (p *Provider) unavailable() llm.Result {
	r := llm.Fail(llm.KindQuota, errUnavailable)
	r.Model = "fallback"
	return r
}

// fail logs err, trips availability on quota errors and normalises the result.
func (p *Provider) fail(ctx context.Context, op string, err error) llm.Result {
	logger.FromContext(ctx).Error("openai request failed", "op", op, "error", err)
	if llm.IsQuota(err) {
		p.avail.trip()
	}
	return llm.FailErr(err)
}

// markQuota tags quota and rate-limit API errors with llm.ErrQuota.
func markQuota(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || code == "insufficient_quota" || apiErr.Type == "insufficient_quota" {
			return fmt.Errorf("%w: %w", llm.ErrQuota, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", llm.ErrQuota, err)
	}
	return err
}

func (p *Provider) messages(history []prompt.Turn, user openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt})
	for _, turn := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	return append(msgs, user)
}

func (p *Provider) complete(ctx context.Context, candidates []string, msgs []openai.ChatCompletionMessage) (llm.Result, error) {
	resp, model, err := llm.TryModels(ctx, candidates, llm.IsQuota,
		func(ctx context.Context, model string) (openai.ChatCompletionResponse, error) {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       model,
				Messages:    msgs,
				MaxTokens:   p.maxTokens,
				Temperature: p.temperature,
			})
			if err != nil {
				return resp, markQuota(err)
			}
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return resp, errors.New("empty model response")
			}
			return resp, nil
		})
	if err != nil {
		return llm.Result{}, err
	}

	r := llm.Success(resp.Choices[0].Message.Content, model)
	r.Usage = llm.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	return r, nil
}

// AskText implements llm.Provider.
func (p *Provider) AskText(ctx context.Context, message string, history []prompt.Turn) llm.Result {
	if !p.gate(ctx) {
		return p.unavailable()
	}
	language := lang.Detect(message)

	msgs := p.messages(history, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	r, err := p.complete(ctx, p.models.TextCandidates(), msgs)
	if err != nil {
		r = p.fail(ctx, "text", err)
	}
	r.Language = language
	return r
}

// AskImage implements llm.Provider. The image travels inline as a data URL.
func (p *Provider) AskImage(ctx context.Context, imagePath, message string, history []prompt.Turn) llm.Result {
	if !p.gate(ctx) {
		return p.unavailable()
	}
	data, mimeType, err := attachment.LoadImage(imagePath)
	if err != nil {
		return p.fail(ctx, "image", err)
	}
	if message == "" {
		message = prompt.DefaultImagePrompt
	}

	user := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: message},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
				Detail: openai.ImageURLDetailAuto,
			}},
		},
	}
	r, err := p.complete(ctx, p.models.VisionCandidates(), p.messages(history, user))
	if err != nil {
		return p.fail(ctx, "image", err)
	}
	r.Language = lang.Detect(message)
	return r
}

// AskAudio implements llm.Provider by transcribing the audio and answering
// the transcript as text.
func (p *Provider) AskAudio(ctx context.Context, audioPath, message string, history []prompt.Turn) llm.Result {
	if !p.gate(ctx) {
		return p.unavailable()
	}
	if _, err := attachment.ValidateAudio(audioPath); err != nil {
		return p.fail(ctx, "audio", err)
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.models.Audio,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return p.fail(ctx, "transcription", markQuota(err))
	}
	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		return p.fail(ctx, "transcription", fmt.Errorf("%w: no speech recognised", attachment.ErrEmpty))
	}
	logger.FromContext(ctx).Info("audio transcribed", "model", p.models.Audio, "chars", len(transcript))

	text := transcript
	if message != "" {
		text = fmt.Sprintf("%s\n\nVoice message transcript: %s", message, transcript)
	}
	r := p.AskText(ctx, text, history)
	r.Transcript = transcript
	if r.OK() {
		r.Model = p.models.Audio + " + " + r.Model
	}
	return r
}

// AskPDF implements llm.Provider by answering the extracted document text.
func (p *Provider) AskPDF(ctx context.Context, pdfPath, message string, history []prompt.Turn) llm.Result {
	text := attachment.Truncate(attachment.ExtractPDFText(pdfPath), p.pdfCharLimit)
	return p.AskText(ctx, prompt.PDF(message, text), history)
}

// Status implements llm.StatusReporter.
func (p *Provider) Status(ctx context.Context) (llm.Status, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return llm.Status{}, markQuota(err)
	}
	ids := make(map[string]bool, len(list.Models))
	for _, m := range list.Models {
		ids[m.ID] = true
	}

	st := llm.Status{
		Provider:       p.Name(),
		Available:      p.Available(),
		Models:         map[string]llm.ModelStatus{},
		TotalAvailable: len(list.Models),
	}
	for class, model := range p.models.Classes() {
		st.Models[class] = llm.ModelStatus{Model: model, Available: ids[model]}
	}
	return st, nil
}
