package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type ctxKey struct{}

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetFormat swaps the global handler. "auto" picks text output when stdout is
// a terminal and JSON otherwise. Call it once at startup.
func SetFormat(format string) {
	SetOutput(os.Stdout, format)
}

// SetOutput is SetFormat writing to f. The MCP stdio server logs to stderr
// because stdout carries the protocol.
func SetOutput(f *os.File, format string) {
	L = slog.New(newHandler(f, format, isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())))
}

func newHandler(w io.Writer, format string, tty bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelVar}
	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "auto":
		if tty {
			return slog.NewTextHandler(w, opts)
		}
	}
	return slog.NewJSONHandler(w, opts)
}

// WithRequestID stores a request id in ctx for FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// FromContext returns L annotated with the request id carried by ctx, if any.
func FromContext(ctx context.Context) *slog.Logger {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		return L
	}
	return L.With("request_id", id)
}
