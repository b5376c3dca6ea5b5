package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// API is the part of the genai client the provider needs.
type API interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	UploadFile(ctx context.Context, path, mimeType string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// ClientConfig configures the Gemini API client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

type clientAPI struct {
	client *genai.Client
}

// NewAPI creates a Gemini Developer API client.
func NewAPI(ctx context.Context, cfg ClientConfig) (API, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &clientAPI{client: client}, nil
}

func (c *clientAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (c *clientAPI) UploadFile(ctx context.Context, path, mimeType string) (*genai.File, error) {
	return c.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
}

func (c *clientAPI) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return c.client.Files.Get(ctx, name, nil)
}

func (c *clientAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := c.client.Files.Delete(ctx, name, nil)
	return err
}
