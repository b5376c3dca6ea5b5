package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer

	slog.New(newHandler(&buf, "json", true)).Info("hello", "k", "v")
	require.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	slog.New(newHandler(&buf, "text", false)).Info("hello", "k", "v")
	require.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	slog.New(newHandler(&buf, "auto", true)).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	slog.New(newHandler(&buf, "auto", false)).Info("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("debug")
	require.Equal(t, slog.LevelDebug, levelVar.Level())
	SetLevel("WARN")
	require.Equal(t, slog.LevelWarn, levelVar.Level())
	SetLevel("bogus")
	require.Equal(t, slog.LevelInfo, levelVar.Level())
}

func TestFromContext(t *testing.T) {
	require.Same(t, L, FromContext(context.Background()))
	require.NotSame(t, L, FromContext(WithRequestID(context.Background(), "req-1")))
}
