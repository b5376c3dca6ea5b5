package attachment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/thelp-go/internal/attachment/attachmenttest"
	"github.com/comigor/thelp-go/internal/history"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestClassify(t *testing.T) {
	cases := map[string]history.Modality{
		"a.jpg":      history.ModalityImage,
		"a.JPEG":     history.ModalityImage,
		"a.png":      history.ModalityImage,
		"a.gif":      history.ModalityImage,
		"a.mp4":      history.ModalityVideo,
		"a.avi":      history.ModalityVideo,
		"a.mov":      history.ModalityVideo,
		"a.wav":      history.ModalityAudio,
		"a.mp3":      history.ModalityAudio,
		"a.ogg":      history.ModalityAudio,
		"voice.webm": history.ModalityAudio,
		"bill.pdf":   history.ModalityPDF,
		"notes.txt":  history.ModalityDocument,
	}
	for name, want := range cases {
		got, err := Classify(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
		require.True(t, Allowed(name), name)
	}

	for _, name := range []string{"setup.exe", "noext", "archive.tar.gz", ".pdf.sh"} {
		_, err := Classify(name)
		require.ErrorIs(t, err, ErrNotAllowed, name)
		require.False(t, Allowed(name), name)
	}
}

func TestValidateAudio(t *testing.T) {
	ok := writeFile(t, "note.webm", []byte("audio-bytes"))
	mimeType, err := ValidateAudio(ok)
	require.NoError(t, err)
	require.Equal(t, "audio/webm", mimeType)

	_, err = ValidateAudio(writeFile(t, "empty.mp3", nil))
	require.ErrorIs(t, err, ErrEmpty)

	_, err = ValidateAudio(writeFile(t, "note.xyz", []byte("x")))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	big := filepath.Join(t.TempDir(), "big.wav")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxAudioBytes+1))
	require.NoError(t, f.Close())
	_, err = ValidateAudio(big)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = ValidateAudio(filepath.Join(t.TempDir(), "missing.wav"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	data, mimeType, err := LoadImage(writeFile(t, "shot.png", png))
	require.NoError(t, err)
	require.Equal(t, png, data)
	require.Equal(t, "image/png", mimeType)

	// unknown extension, sniffed from content
	_, mimeType, err = LoadImage(writeFile(t, "shot.bin", png))
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)

	_, _, err = LoadImage(writeFile(t, "notes.bin", []byte("plain text")))
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtractPDFText_FailureIsPlaceholder(t *testing.T) {
	require.Equal(t, ExtractFailed, ExtractPDFText(filepath.Join(t.TempDir(), "missing.pdf")))
	require.Equal(t, ExtractFailed, ExtractPDFText(writeFile(t, "broken.pdf", []byte("not a pdf"))))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abcdef", 3))
	require.Equal(t, "abc", Truncate("abc", 10))
	require.Equal(t, "abcdef", Truncate("abcdef", 0))
	// counts characters, not bytes
	require.Equal(t, "ëëë", Truncate(strings.Repeat("ë", 10), 3))
}

func TestExtractPDFText_ReadsTextLayer(t *testing.T) {
	path := attachmenttest.WritePDF(t, "invoice.pdf", "Telkom invoice", "Amount due: R499 (incl. VAT)")

	text := ExtractPDFText(path)
	require.Equal(t, "Telkom invoice\nAmount due: R499 (incl. VAT)", text)
	require.Equal(t, "Telkom invoice", Truncate(text, 14))
	require.Equal(t, text, Truncate(text, 4000))
}
