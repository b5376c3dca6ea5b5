// Package attachment knows which uploads are accepted and how to read them.
package attachment

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/comigor/thelp-go/internal/history"
)

var (
	ErrNotAllowed        = errors.New("file type not allowed")
	ErrNotFound          = errors.New("file not found")
	ErrEmpty             = errors.New("file is empty")
	ErrTooLarge          = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrUnsupportedImage  = errors.New("unsupported image format")
	ErrProcessingFailed  = errors.New("file processing failed")
)

// MaxAudioBytes is the largest audio file sent to a provider.
const MaxAudioBytes = 20 * 1024 * 1024

var allowed = map[string]history.Modality{
	"txt":  history.ModalityDocument,
	"pdf":  history.ModalityPDF,
	"png":  history.ModalityImage,
	"jpg":  history.ModalityImage,
	"jpeg": history.ModalityImage,
	"gif":  history.ModalityImage,
	"mp4":  history.ModalityVideo,
	"avi":  history.ModalityVideo,
	"mov":  history.ModalityVideo,
	"wav":  history.ModalityAudio,
	"mp3":  history.ModalityAudio,
	"ogg":  history.ModalityAudio,
	"webm": history.ModalityAudio,
}

// AudioFormats maps accepted audio extensions to their MIME type.
var AudioFormats = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mp3",
	"aiff": "audio/aiff",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"webm": "audio/webm",
	"m4a":  "audio/mp4",
}

// Ext returns the lowercased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether uploads named name are accepted.
func Allowed(name string) bool {
	_, ok := allowed[Ext(name)]
	return ok
}

// Classify returns the modality of an accepted upload.
func Classify(name string) (history.Modality, error) {
	m, ok := allowed[Ext(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotAllowed, filepath.Base(name))
	}
	return m, nil
}

// ValidateAudio checks an audio file before it is handed to a provider and
// returns its MIME type.
func ValidateAudio(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	mimeType, ok := AudioFormats[Ext(path)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, Ext(path))
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	if info.Size() > MaxAudioBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), MaxAudioBytes)
	}
	return mimeType, nil
}

// LoadImage reads an image and reports its MIME type, preferring the
// extension and falling back to content sniffing.
func LoadImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	return data, mimeType, nil
}
