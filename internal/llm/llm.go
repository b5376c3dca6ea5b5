// Package llm defines the provider contract shared by every model backend.
package llm

import (
	"context"

	"github.com/comigor/thelp-go/internal/prompt"
)

// Provider answers one user turn per input modality. Implementations never
// return errors: every outcome, including failures, is a Result whose Text is
// safe to show to the user.
type Provider interface {
	Name() string
	AskText(ctx context.Context, message string, history []prompt.Turn) Result
	AskImage(ctx context.Context, imagePath, message string, history []prompt.Turn) Result
	AskAudio(ctx context.Context, audioPath, message string, history []prompt.Turn) Result
	AskPDF(ctx context.Context, pdfPath, message string, history []prompt.Turn) Result
}

// StatusReporter is implemented by providers that can check which configured
// models their account can use.
type StatusReporter interface {
	Status(ctx context.Context) (Status, error)
}

// Status describes the provider for the status endpoint.
type Status struct {
	Provider       string                 `json:"provider"`
	Available      bool                   `json:"available"`
	Models         map[string]ModelStatus `json:"model_status"`
	TotalAvailable int                    `json:"total_available"`
}

// ModelStatus is one configured model class.
type ModelStatus struct {
	Model     string `json:"model"`
	Available bool   `json:"available"`
}

// Models is the model identifier per request class.
type Models struct {
	Primary       string
	Fallback      string
	CostEfficient string
	Fast          string
	Vision        string
	Audio         string
}

// Classes lists the configured classes by name, skipping empty ones.
func (m Models) Classes() map[string]string {
	out := make(map[string]string, 6)
	for name, model := range map[string]string{
		"primary":        m.Primary,
		"fallback":       m.Fallback,
		"cost_efficient": m.CostEfficient,
		"fast":           m.Fast,
		"vision":         m.Vision,
		"audio":          m.Audio,
	} {
		if model != "" {
			out[name] = model
		}
	}
	return out
}

// Merge fills empty entries of m from defaults.
func (m Models) Merge(defaults Models) Models {
	pick := func(v, d string) string {
		if v != "" {
			return v
		}
		return d
	}
	return Models{
		Primary:       pick(m.Primary, defaults.Primary),
		Fallback:      pick(m.Fallback, defaults.Fallback),
		CostEfficient: pick(m.CostEfficient, defaults.CostEfficient),
		Fast:          pick(m.Fast, defaults.Fast),
		Vision:        pick(m.Vision, defaults.Vision),
		Audio:         pick(m.Audio, defaults.Audio),
	}
}

// TextCandidates is the fallback order for text requests.
func (m Models) TextCandidates() []string {
	return Candidates(m.Primary, m.Fallback, m.CostEfficient)
}

// VisionCandidates is the fallback order for image and audio requests.
func (m Models) VisionCandidates() []string {
	return Candidates(m.Vision, m.Fallback, m.CostEfficient)
}
