package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
llm:
  provider: Gemini
  base_url: https://api.example.com
  api_key: dummy
  referer: https://thelp.example.com
  title: T-Help
  models:
    primary: gemini-2.5-flash
    fallback: gemini-2.0-flash
  pdf_char_limit: 4000
  audio:
    poll_interval: 500ms
    max_wait: 30s
server:
  host: 127.0.0.1
  port: "8080"
sessions:
  max_sessions: 10
  ttl: 1h
`

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"THELP_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString(body)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	return tmp.Name()
}

// TestLoad_File verifies that Load reads the file named by CONFIG_PATH.
func TestLoad_File(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ProviderGemini, cfg.LLM.Provider)
	require.Equal(t, "dummy", cfg.LLM.APIKey)
	require.Equal(t, "T-Help", cfg.LLM.Title)
	require.Equal(t, "gemini-2.0-flash", cfg.LLM.Models.Fallback)
	require.Equal(t, 4000, cfg.LLM.PDFCharLimit)
	require.Equal(t, 500*time.Millisecond, cfg.LLM.Audio.PollInterval)
	require.Equal(t, 30*time.Second, cfg.LLM.Audio.MaxWait)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 10, cfg.Sessions.MaxSessions)
	require.Equal(t, time.Hour, cfg.Sessions.TTL)

	// untouched keys keep their defaults
	require.Equal(t, 6, cfg.Sessions.ContextWindow)
	require.Equal(t, int64(16*1024*1024), cfg.Server.MaxUploadBytes)
	require.Equal(t, 1000, cfg.LLM.MaxTokens)
	require.True(t, cfg.LLM.ProbeOnStart)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))
	t.Setenv("THELP_SERVER_PORT", "9999")
	t.Setenv("THELP_LLM_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.Server.Port)
	require.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoadFile_EnvOnly(t *testing.T) {
	clearKeyEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("THELP_LLM_BASE_URL", "https://openrouter.ai/api/v1")
	t.Setenv("THELP_LLM_REFERER", "https://thelp.example")
	t.Setenv("THELP_LLM_TITLE", "T-Help")
	t.Setenv("THELP_LLM_MODELS_PRIMARY", "openai/gpt-5")
	t.Setenv("THELP_LLM_MODELS_AUDIO", "whisper-1")
	t.Setenv("THELP_LLM_PDF_CHAR_LIMIT", "2000")
	t.Setenv("THELP_LLM_COUNT_TOKENS", "true")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	require.Equal(t, "https://thelp.example", cfg.LLM.Referer)
	require.Equal(t, "T-Help", cfg.LLM.Title)
	require.Equal(t, "openai/gpt-5", cfg.LLM.Models.Primary)
	require.Equal(t, "whisper-1", cfg.LLM.Models.Audio)
	require.Empty(t, cfg.LLM.Models.Fallback)
	require.Equal(t, 2000, cfg.LLM.PDFCharLimit)
	require.True(t, cfg.LLM.CountTokens)
}

func TestLoadFile_NoFileUsesDefaults(t *testing.T) {
	clearKeyEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	require.Zero(t, cfg.LLM.ReprobeAfter)
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	require.Error(t, err)
}
