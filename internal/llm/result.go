package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/lang"
)

// ErrorKind classifies why a provider call failed.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindAttachment   ErrorKind = "attachment"
	KindProvider     ErrorKind = "provider"
	KindQuota        ErrorKind = "quota"
	KindTimeout      ErrorKind = "timeout"
)

var (
	// ErrQuota marks errors caused by an exhausted provider quota or billing.
	ErrQuota = errors.New("provider quota exceeded")
	// ErrTimeout marks attachment processing that did not finish in time.
	ErrTimeout = errors.New("processing timed out")
)

// Failure is the error half of a Result.
type Failure struct {
	Kind  ErrorKind
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Usage is the token accounting reported by the provider, when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is the outcome of one provider operation. Text is always safe to
// display; on failure it holds an apology or the quota troubleshooting text.
type Result struct {
	Text       string
	Model      string
	Transcript string
	Language   lang.Language
	Usage      Usage
	Timestamp  time.Time
	Failure    *Failure
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Failure == nil }

// Success builds a successful Result.
func Success(text, model string) Result {
	return Result{Text: text, Model: model, Timestamp: time.Now()}
}

// Fail builds a failed Result carrying the user-facing text for kind.
func Fail(kind ErrorKind, cause error) Result {
	return Result{
		Text:      FailureText(kind),
		Timestamp: time.Now(),
		Failure:   &Failure{Kind: kind, Cause: cause},
	}
}

// FailErr classifies err and builds the matching failed Result.
func FailErr(err error) Result {
	return Fail(Classify(err), err)
}

const (
	apologyText = "I'm sorry, I'm having trouble processing your request right now. Please try again in a moment, or contact Telkom support directly for immediate assistance."

	attachmentText = "I couldn't process the file you sent. Please check that it is a supported format, not empty and under 20 MB, then try again."

	timeoutText = "Your file is taking too long to process. Please try again in a moment, or describe the problem in a text message."

	invalidInputText = "I didn't receive any content. Please type a message or attach a file."

	// QuotaText is returned while the provider account is out of quota.
	QuotaText = `I'm temporarily unable to reach my AI service, but here are some steps that solve most connection problems:

1. Restart your router: unplug it for 30 seconds, then plug it back in and wait two minutes.
2. Check that all cables are firmly connected and the router lights are on.
3. Test with another device to see whether the problem is with one device or the whole connection.
4. For Wi-Fi issues, move closer to the router or connect with a network cable.
5. Check the Telkom network status page for outages in your area.

If the problem continues, please contact Telkom support on 10210 or through the Telkom app and a human agent will assist you.`
)

// FailureText is the user-facing message for kind.
func FailureText(kind ErrorKind) string {
	switch kind {
	case KindQuota:
		return QuotaText
	case KindAttachment:
		return attachmentText
	case KindTimeout:
		return timeoutText
	case KindInvalidInput:
		return invalidInputText
	default:
		return apologyText
	}
}

var quotaSignatures = []string{"insufficient_quota", "quota", "billing", "resource_exhausted", "too many requests"}

// IsQuota reports whether err is, or looks like, a quota or billing error.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuota) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Classify maps err to an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case IsQuota(err):
		return KindQuota
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, attachment.ErrNotFound),
		errors.Is(err, attachment.ErrEmpty),
		errors.Is(err, attachment.ErrTooLarge),
		errors.Is(err, attachment.ErrUnsupportedFormat),
		errors.Is(err, attachment.ErrUnsupportedImage),
		errors.Is(err, attachment.ErrProcessingFailed),
		errors.Is(err, attachment.ErrNotAllowed):
		return KindAttachment
	default:
		return KindProvider
	}
}
