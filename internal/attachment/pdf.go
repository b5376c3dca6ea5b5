package attachment

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/comigor/thelp-go/internal/logger"
)

// ExtractFailed replaces the document text when extraction fails.
const ExtractFailed = "Could not extract text from PDF."

// ExtractPDFText concatenates the plain text of every page. Pages without a
// text layer are skipped. Failures are logged and yield ExtractFailed, never
// an error.
func ExtractPDFText(path string) string {
	text, err := extractPDFText(path)
	if err != nil {
		logger.L.Error("error extracting pdf text", "path", path, "error", err)
		return ExtractFailed
	}
	return text
}

func extractPDFText(path string) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.L.Warn("skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

// Truncate keeps at most limit characters of s. A non-positive limit keeps
// everything.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
