// Package server exposes the chat agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/thelp-go/internal/agent"
	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/history"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
	"github.com/comigor/thelp-go/internal/uploads"
)

// DefaultMaxUploadBytes caps a send_message request body.
const DefaultMaxUploadBytes = 16 << 20

// Options configures the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	// StatusTimeout bounds the provider call behind /api_status.
	StatusTimeout time.Duration
}

type Server struct {
	agent   *agent.Agent
	uploads *uploads.Store
	opts    Options
}

// New returns the routed, middleware wrapped handler.
func New(a *agent.Agent, store *uploads.Store, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = 15 * time.Second
	}
	s := &Server{agent: a, uploads: store, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send_message", s.handleSendMessage)
	mux.HandleFunc("GET /get_chat_history/{id}", s.handleHistory)
	mux.HandleFunc("GET /get_uploads/{id}", s.handleUploads)
	mux.HandleFunc("GET /uploads/{id}", s.handleDownload)
	mux.HandleFunc("GET /api_status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return chain(mux, withRequestID, withLogging, withCORS)
}

type sendMessageResponse struct {
	Status      string          `json:"status"`
	UserMessage history.Message `json:"user_message"`
	AIMessage   history.Message `json:"ai_message"`
	SessionID   string          `json:"session_id"`
}

type historyResponse struct {
	Status   string            `json:"status"`
	Messages []history.Message `json:"messages"`
}

type uploadsResponse struct {
	Status  string           `json:"status"`
	Uploads []uploads.Upload `json:"uploads"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	Success bool `json:"success"`
	llm.Status
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	in := agent.TurnInput{SessionID: sessionID, Text: strings.TrimSpace(r.FormValue("message"))}

	if file, ok := formFile(r, "voice_data"); ok {
		u, err := saveUpload(file, func(f io.Reader) (*uploads.Upload, error) {
			return s.uploads.SaveVoice(ctx, sessionID, f)
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.Modality = history.ModalityVoice
		in.AttachmentPath, in.AttachmentName = u.Path, u.Name
	} else if file, ok := formFile(r, "file"); ok {
		u, err := saveUpload(file, func(f io.Reader) (*uploads.Upload, error) {
			return s.uploads.Save(ctx, sessionID, file.Filename, f)
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.AttachmentPath, in.AttachmentName = u.Path, u.Name
	}

	out, err := s.agent.HandleTurn(ctx, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{
		Status:      "success",
		UserMessage: out.UserMessage,
		AIMessage:   out.AssistantMessage,
		SessionID:   out.SessionID,
	})
}

func formFile(r *http.Request, field string) (*multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || (field == "file" && files[0].Filename == "") {
		return nil, false
	}
	return files[0], true
}

func saveUpload(fh *multipart.FileHeader, save func(io.Reader) (*uploads.Upload, error)) (*uploads.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return save(f)
}

// fail maps input errors to a 400 with a message safe to show the user.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Warn("send_message rejected", "error", err)
	switch {
	case errors.Is(err, agent.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "No content provided")
	case errors.Is(err, attachment.ErrNotAllowed):
		writeError(w, http.StatusBadRequest, "File type not allowed")
	case errors.Is(err, attachment.ErrNotFound):
		writeError(w, http.StatusBadRequest, "Uploaded file could not be read")
	default:
		writeError(w, http.StatusInternalServerError, "Could not process the message")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse{Status: "success", Messages: s.agent.History(r.PathValue("id"))})
}

// handleUploads lists the catalogued files of a session.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	list, err := s.uploads.List(r.Context(), r.PathValue("id"))
	if err != nil {
		logger.FromContext(r.Context()).Error("listing uploads failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not list uploads")
		return
	}
	if list == nil {
		list = []uploads.Upload{}
	}
	writeJSON(w, http.StatusOK, uploadsResponse{Status: "success", Uploads: list})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	u, err := s.uploads.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, uploads.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Upload not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("loading upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not load upload")
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": u.Name}))
	http.ServeFile(w, r, u.Path)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reporter, ok := s.agent.Provider().(llm.StatusReporter)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "Connected", "provider": s.agent.Provider().Name()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.StatusTimeout)
	defer cancel()
	st, err := reporter.Status(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("provider status failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": "Could not reach the AI provider"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Status: st})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}
