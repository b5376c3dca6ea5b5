package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/thelp-go/internal/llm"
)

func TestAskText_KeywordReplies(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"hello", greetingReply},
		{"My WiFi keeps dropping", internetReply},
		{"the router is not working", internetReply},
		{"billing question", defaultReply},
		{"Analyze this video: setup.mp4", fileReply("video")},
	}
	p := New()
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			res := p.AskText(context.Background(), tt.message, nil)
			require.True(t, res.OK())
			require.Equal(t, tt.want, res.Text)
			require.Equal(t, Model, res.Model)
		})
	}
}

func TestAttachments(t *testing.T) {
	p := New()
	ctx := context.Background()

	require.Equal(t, voiceReply, p.AskAudio(ctx, "voice.webm", "", nil).Text)
	require.Contains(t, p.AskImage(ctx, "a.png", "", nil).Text, "your image")
	require.Contains(t, p.AskPDF(ctx, "a.pdf", "", nil).Text, "your pdf")
}

func TestImplementsStatusReporter(t *testing.T) {
	var p llm.Provider = New()
	sr, ok := p.(llm.StatusReporter)
	require.True(t, ok)

	st, err := sr.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "demo", st.Provider)
	require.True(t, st.Available)
}
