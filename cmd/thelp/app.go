package main

import (
	"context"
	"fmt"

	"github.com/comigor/thelp-go/internal/agent"
	"github.com/comigor/thelp-go/internal/config"
	"github.com/comigor/thelp-go/internal/history"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/llm/demo"
	"github.com/comigor/thelp-go/internal/llm/gemini"
	"github.com/comigor/thelp-go/internal/llm/openaicompat"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/prompt"
)

func loadConfig() (*config.Config, error) {
	load := config.Load
	if configPath != "" {
		load = func() (*config.Config, error) { return config.LoadFile(configPath) }
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

// newProvider builds the configured backend. A missing API key selects the
// demo provider so the service still starts.
func newProvider(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	models := llm.Models{
		Primary:       cfg.Models.Primary,
		Fallback:      cfg.Models.Fallback,
		CostEfficient: cfg.Models.CostEfficient,
		Fast:          cfg.Models.Fast,
		Vision:        cfg.Models.Vision,
		Audio:         cfg.Models.Audio,
	}

	if cfg.Provider != config.ProviderDemo && cfg.APIKey == "" {
		logger.L.Warn("no API key configured, running in demo mode", "provider", cfg.Provider)
		return demo.New(), nil
	}

	switch cfg.Provider {
	case config.ProviderDemo:
		return demo.New(), nil
	case config.ProviderOpenAI:
		client := openaicompat.NewClient(openaicompat.ClientConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Referer: cfg.Referer,
			Title:   cfg.Title,
			Timeout: cfg.Timeout,
		})
		return openaicompat.New(ctx, client, openaicompat.Options{
			Models:       models,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			PDFCharLimit: cfg.PDFCharLimit,
			ProbeOnStart: cfg.ProbeOnStart,
			ReprobeAfter: cfg.ReprobeAfter,
		}), nil
	case config.ProviderGemini:
		api, err := gemini.NewAPI(ctx, gemini.ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return gemini.New(api, gemini.Options{
			Models:       models,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			PDFCharLimit: cfg.PDFCharLimit,
			PollInterval: cfg.Audio.PollInterval,
			MaxWait:      cfg.Audio.MaxWait,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm.provider %q (want %s, %s or %s)", cfg.Provider, config.ProviderOpenAI, config.ProviderGemini, config.ProviderDemo)
	}
}

// newAgent wires the provider and an empty session store.
func newAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, error) {
	provider, err := newProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	logger.L.Info("provider ready", "provider", provider.Name())

	opts := agent.Options{ContextWindow: cfg.Sessions.ContextWindow, SystemPrompt: cfg.LLM.SystemPrompt}
	if cfg.LLM.CountTokens {
		if tk, err := prompt.NewTiktoken(); err != nil {
			logger.L.Warn("tiktoken unavailable, using approximate token counts", "error", err)
			opts.Tokens = prompt.Approx{}
		} else {
			opts.Tokens = tk
		}
	}

	store := history.NewStore(history.Options{MaxSessions: cfg.Sessions.MaxSessions, TTL: cfg.Sessions.TTL})
	return agent.New(provider, store, opts), nil
}
