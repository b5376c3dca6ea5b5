// Package gemini implements llm.Provider on the Gemini API. Audio is uploaded
// and referenced by URI rather than transcribed locally.
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/prompt"
)

// DefaultModels are used for classes left empty in Options.Models.
var DefaultModels = llm.Models{
	Primary:       "gemini-2.5-flash",
	Fallback:      "gemini-2.0-flash",
	CostEfficient: "gemini-2.0-flash-lite",
	Fast:          "gemini-2.0-flash-lite",
	Vision:        "gemini-2.5-flash",
	Audio:         "gemini-2.5-flash",
}

// DefaultPDFCharLimit bounds the extracted PDF text sent to the model.
const DefaultPDFCharLimit = 4000

// Options configures a Provider.
type Options struct {
	Models       llm.Models
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	PDFCharLimit int
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Provider talks to the Gemini API.
type Provider struct {
	api          API
	models       llm.Models
	systemPrompt string
	maxTokens    int32
	temperature  float32
	pdfCharLimit int
	pollInterval time.Duration
	maxWait      time.Duration
}

// New creates a provider. It makes no network calls.
func New(api API, opts Options) *Provider {
	p := &Provider{
		api:          api,
		models:       opts.Models.Merge(DefaultModels),
		systemPrompt: opts.SystemPrompt,
		maxTokens:    int32(opts.MaxTokens),
		temperature:  opts.Temperature,
		pdfCharLimit: opts.PDFCharLimit,
		pollInterval: opts.PollInterval,
		maxWait:      opts.MaxWait,
	}
	if p.systemPrompt == "" {
		p.systemPrompt = prompt.SystemPrompt
	}
	if p.pdfCharLimit <= 0 {
		p.pdfCharLimit = DefaultPDFCharLimit
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.maxWait <= 0 {
		p.maxWait = DefaultMaxWait
	}
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "gemini" }

func (p *Provider) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.systemPrompt, genai.RoleUser),
		MaxOutputTokens:   p.maxTokens,
	}
	if p.temperature > 0 {
		temp := p.temperature
		cfg.Temperature = &temp
	}
	return cfg
}

func contents(history []prompt.Turn, user *genai.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role != prompt.RoleUser {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(turn.Content, role))
	}
	return append(out, user)
}

func (p *Provider) generate(ctx context.Context, candidates []string, conv []*genai.Content) (llm.Result, error) {
	cfg := p.config()
	resp, model, err := llm.TryModels(ctx, candidates, llm.IsQuota,
		func(ctx context.Context, model string) (*genai.GenerateContentResponse, error) {
			resp, err := p.api.GenerateContent(ctx, model, conv, cfg)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(resp.Text()) == "" {
				return nil, errors.New("empty model response")
			}
			return resp, nil
		})
	if err != nil {
		return llm.Result{}, err
	}

	r := llm.Success(resp.Text(), model)
	if u := resp.UsageMetadata; u != nil {
		r.Usage = llm.Usage{PromptTokens: int(u.PromptTokenCount), CompletionTokens: int(u.CandidatesTokenCount)}
	}
	return r, nil
}

func fail(ctx context.Context, op string, err error) llm.Result {
	logger.FromContext(ctx).Error("gemini request failed", "op", op, "error", err)
	return llm.FailErr(err)
}

// AskText implements llm.Provider.
func (p *Provider) AskText(ctx context.Context, message string, history []prompt.Turn) llm.Result {
	conv := contents(history, genai.NewContentFromText(message, genai.RoleUser))
	r, err := p.generate(ctx, p.models.TextCandidates(), conv)
	if err != nil {
		return fail(ctx, "text", err)
	}
	return r
}

// AskImage implements llm.Provider. Image bytes are sent inline.
func (p *Provider) AskImage(ctx context.Context, imagePath, message string, history []prompt.Turn) llm.Result {
	data, mimeType, err := attachment.LoadImage(imagePath)
	if err != nil {
		return fail(ctx, "image", err)
	}
	if message == "" {
		message = prompt.DefaultImagePrompt
	}

	user := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(message),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)
	r, err := p.generate(ctx, p.models.VisionCandidates(), contents(history, user))
	if err != nil {
		return fail(ctx, "image", err)
	}
	return r
}

// AskAudio implements llm.Provider. The file is validated, uploaded, polled
// until active and referenced from a multimodal request. The upload is
// deleted afterwards on a best-effort basis.
func (p *Provider) AskAudio(ctx context.Context, audioPath, message string, history []prompt.Turn) llm.Result {
	mimeType, err := attachment.ValidateAudio(audioPath)
	if err != nil {
		return fail(ctx, "audio", err)
	}

	file, err := p.api.UploadFile(ctx, audioPath, mimeType)
	if err != nil {
		return fail(ctx, "audio upload", err)
	}
	defer p.deleteUpload(ctx, file.Name)

	file, err = awaitActive(ctx, p.api, file, p.pollInterval, p.maxWait)
	if err != nil {
		return fail(ctx, "audio processing", err)
	}

	if message == "" {
		message = prompt.DefaultAudioPrompt
	}
	user := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(message),
		genai.NewPartFromURI(file.URI, mimeType),
	}, genai.RoleUser)
	candidates := llm.Candidates(p.models.Audio, p.models.Fallback, p.models.CostEfficient)
	r, err := p.generate(ctx, candidates, contents(history, user))
	if err != nil {
		return fail(ctx, "audio", err)
	}
	return r
}

func (p *Provider) deleteUpload(ctx context.Context, name string) {
	// The request context may already be done; cleanup gets its own budget.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.api.DeleteFile(ctx, name); err != nil {
		logger.FromContext(ctx).Warn("could not delete uploaded file", "file", name, "error", err)
	}
}

// AskPDF implements llm.Provider by answering the extracted document text.
func (p *Provider) AskPDF(ctx context.Context, pdfPath, message string, history []prompt.Turn) llm.Result {
	text := attachment.Truncate(attachment.ExtractPDFText(pdfPath), p.pdfCharLimit)
	return p.AskText(ctx, prompt.PDF(message, text), history)
}
