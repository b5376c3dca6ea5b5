package gemini

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/attachment/attachmenttest"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/prompt"
)

type fakeAPI struct {
	GenerateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	UploadFunc   func(ctx context.Context, path, mimeType string) (*genai.File, error)
	GetFunc      func(ctx context.Context, name string) (*genai.File, error)
	DeleteFunc   func(ctx context.Context, name string) error

	models   []string
	contents [][]*genai.Content
	uploads  int
	gets     int
	deleted  []string
}

func (f *fakeAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, model, contents, cfg)
	}
	return textResponse("ok"), nil
}

func (f *fakeAPI) UploadFile(ctx context.Context, path, mimeType string) (*genai.File, error) {
	f.uploads++
	if f.UploadFunc != nil {
		return f.UploadFunc(ctx, path, mimeType)
	}
	return &genai.File{Name: "files/1", URI: "https://files/1", MIMEType: mimeType, State: genai.FileStateActive}, nil
}

func (f *fakeAPI) GetFile(ctx context.Context, name string) (*genai.File, error) {
	f.gets++
	if f.GetFunc != nil {
		return f.GetFunc(ctx, name)
	}
	return &genai.File{Name: name, URI: "https://" + name, State: genai.FileStateActive}, nil
}

func (f *fakeAPI) DeleteFile(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, name)
	}
	return nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     20,
			CandidatesTokenCount: 5,
		},
	}
}

var testModels = llm.Models{Primary: "A", Fallback: "B", CostEfficient: "C", Vision: "V", Audio: "AU"}

func newProvider(api *fakeAPI) *Provider {
	return New(api, Options{Models: testModels, PollInterval: time.Millisecond, MaxWait: 20 * time.Millisecond})
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestAskText_UsesModelRoleForHistory(t *testing.T) {
	api := &fakeAPI{}
	p := newProvider(api)

	history := []prompt.Turn{{Role: prompt.RoleUser, Content: "hi"}, {Role: prompt.RoleAssistantGemini, Content: "hello"}}
	res := p.AskText(context.Background(), "my router blinks red", history)

	require.True(t, res.OK())
	require.Equal(t, "ok", res.Text)
	require.Equal(t, "A", res.Model)
	require.Equal(t, 20, res.Usage.PromptTokens)

	sent := api.contents[0]
	require.Len(t, sent, 3)
	require.Equal(t, string(genai.RoleUser), sent[0].Role)
	require.Equal(t, string(genai.RoleModel), sent[1].Role)
	require.Equal(t, "my router blinks red", sent[2].Parts[0].Text)
}

func TestAskText_FallbackAndQuotaStop(t *testing.T) {
	api := &fakeAPI{GenerateFunc: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if model == "A" {
			return nil, errors.New("model unavailable")
		}
		return textResponse("from " + model), nil
	}}
	p := newProvider(api)
	res := p.AskText(context.Background(), "hello", nil)
	require.Equal(t, "B", res.Model)
	require.Equal(t, []string{"A", "B"}, api.models)

	api = &fakeAPI{GenerateFunc: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("Error 429, RESOURCE_EXHAUSTED")
	}}
	p = newProvider(api)
	res = p.AskText(context.Background(), "hello", nil)
	require.Equal(t, llm.KindQuota, res.Failure.Kind)
	require.Equal(t, llm.QuotaText, res.Text)
	require.Equal(t, []string{"A"}, api.models)
}

func TestAskImage_InlineBytes(t *testing.T) {
	path := writeFile(t, "screen.jpg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0})
	api := &fakeAPI{}
	p := newProvider(api)

	res := p.AskImage(context.Background(), path, "what does this error mean?", nil)
	require.True(t, res.OK())
	require.Equal(t, "V", res.Model)

	parts := api.contents[0][0].Parts
	require.Len(t, parts, 2)
	require.Equal(t, "what does this error mean?", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	require.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
}

func TestAskAudio_UploadsPollsAndDeletes(t *testing.T) {
	path := writeFile(t, "voice.webm", []byte("webm audio"))
	polls := 0
	api := &fakeAPI{
		UploadFunc: func(ctx context.Context, path, mimeType string) (*genai.File, error) {
			require.Equal(t, "audio/webm", mimeType)
			return &genai.File{Name: "files/7", State: genai.FileStateProcessing}, nil
		},
		GetFunc: func(ctx context.Context, name string) (*genai.File, error) {
			polls++
			if polls < 3 {
				return &genai.File{Name: name, State: genai.FileStateProcessing}, nil
			}
			return &genai.File{Name: name, URI: "https://files/7", State: genai.FileStateActive}, nil
		},
	}
	p := New(api, Options{Models: testModels, PollInterval: time.Millisecond, MaxWait: time.Second})

	res := p.AskAudio(context.Background(), path, "", nil)
	require.True(t, res.OK())
	require.Equal(t, "AU", res.Model)
	require.Equal(t, 3, polls)
	require.Equal(t, []string{"files/7"}, api.deleted)

	parts := api.contents[0][0].Parts
	require.Equal(t, prompt.DefaultAudioPrompt, parts[0].Text)
	require.Equal(t, "https://files/7", parts[1].FileData.FileURI)
}

func TestAskAudio_ValidationFailsBeforeUpload(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"empty file", "voice.mp3", nil},
		{"unknown extension", "voice.xyz", []byte("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data)
			api := &fakeAPI{}
			res := newProvider(api).AskAudio(context.Background(), path, "", nil)

			require.False(t, res.OK())
			require.Equal(t, llm.KindAttachment, res.Failure.Kind)
			require.Zero(t, api.uploads)
			require.Empty(t, api.models)
		})
	}
}

func TestAskAudio_ProcessingTimeout(t *testing.T) {
	path := writeFile(t, "voice.wav", []byte("RIFF"))
	api := &fakeAPI{
		UploadFunc: func(ctx context.Context, path, mimeType string) (*genai.File, error) {
			return &genai.File{Name: "files/9", State: genai.FileStateProcessing}, nil
		},
		GetFunc: func(ctx context.Context, name string) (*genai.File, error) {
			return &genai.File{Name: name, State: genai.FileStateProcessing}, nil
		},
	}
	res := newProvider(api).AskAudio(context.Background(), path, "", nil)

	require.False(t, res.OK())
	require.Equal(t, llm.KindTimeout, res.Failure.Kind)
	require.Empty(t, api.models)
	require.Equal(t, []string{"files/9"}, api.deleted, "timed out uploads are still cleaned up")
}

func TestAskAudio_ProcessingFailed(t *testing.T) {
	path := writeFile(t, "voice.ogg", []byte("OggS"))
	api := &fakeAPI{
		UploadFunc: func(ctx context.Context, path, mimeType string) (*genai.File, error) {
			return &genai.File{Name: "files/3", State: genai.FileStateFailed}, nil
		},
		DeleteFunc: func(ctx context.Context, name string) error {
			return errors.New("permission denied")
		},
	}
	res := newProvider(api).AskAudio(context.Background(), path, "", nil)

	require.False(t, res.OK())
	require.Equal(t, llm.KindAttachment, res.Failure.Kind)
	require.ErrorIs(t, res.Failure.Cause, attachment.ErrProcessingFailed)
	require.Zero(t, api.gets)
}

func TestAwaitActive_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitActive(ctx, &fakeAPI{}, &genai.File{Name: "files/1", State: genai.FileStateProcessing}, time.Second, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAskPDF_TruncatesToLimit(t *testing.T) {
	path := writeFile(t, "bill.pdf", []byte("garbage"))
	api := &fakeAPI{}
	p := New(api, Options{Models: testModels, PDFCharLimit: 10})

	res := p.AskPDF(context.Background(), path, "explain", nil)
	require.True(t, res.OK())
	sent := api.contents[0][0].Parts[0].Text
	require.Contains(t, sent, "Could not \n")
	require.NotContains(t, sent, "Could not extract")
}

func TestAskPDF_SendsTruncatedDocumentText(t *testing.T) {
	path := attachmenttest.WritePDF(t, "invoice.pdf", "Telkom invoice", "Amount due: R499 (incl. VAT)")
	api := &fakeAPI{}
	p := New(api, Options{Models: testModels, PDFCharLimit: len("Telkom invoice")})

	res := p.AskPDF(context.Background(), path, "why so high?", nil)
	require.True(t, res.OK())
	sent := api.contents[0][0].Parts[0].Text
	require.Contains(t, sent, "PDF Content Summary:\nTelkom invoice\n\nPlease analyze")
	require.NotContains(t, sent, "Amount due")
}
