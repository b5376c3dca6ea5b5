package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/qmuntal/stateless"
	"google.golang.org/genai"

	"github.com/comigor/thelp-go/internal/attachment"
	"github.com/comigor/thelp-go/internal/llm"
	"github.com/comigor/thelp-go/internal/logger"
)

const (
	uploadSubmitted  = "submitted"
	uploadProcessing = "processing"
	uploadActive     = "active"
	uploadFailed     = "failed"
	uploadTimedOut   = "timed_out"

	triggerProcessing = "processing"
	triggerActive     = "active"
	triggerFailed     = "failed"
	triggerTimeout    = "timeout"
)

// Polling defaults for uploaded audio.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 60 * time.Second
)

func newUploadMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(uploadSubmitted)
	fsm.Configure(uploadSubmitted).
		Permit(triggerProcessing, uploadProcessing).
		Permit(triggerActive, uploadActive).
		Permit(triggerFailed, uploadFailed).
		Permit(triggerTimeout, uploadTimedOut)
	fsm.Configure(uploadProcessing).
		PermitReentry(triggerProcessing).
		Permit(triggerActive, uploadActive).
		Permit(triggerFailed, uploadFailed).
		Permit(triggerTimeout, uploadTimedOut)
	fsm.Configure(uploadActive)
	fsm.Configure(uploadFailed)
	fsm.Configure(uploadTimedOut)
	return fsm
}

func triggerFor(state genai.FileState) string {
	switch state {
	case genai.FileStateActive:
		return triggerActive
	case genai.FileStateFailed:
		return triggerFailed
	default:
		return triggerProcessing
	}
}

// awaitActive polls an uploaded file until the service reports it usable.
// It returns llm.ErrTimeout when maxWait passes first.
func awaitActive(ctx context.Context, api API, file *genai.File, interval, maxWait time.Duration) (*genai.File, error) {
	log := logger.FromContext(ctx).With("file", file.Name)
	fsm := newUploadMachine()
	deadline := time.Now().Add(maxWait)

	for {
		if err := fsm.Fire(triggerFor(file.State)); err != nil {
			return nil, fmt.Errorf("upload state: %w", err)
		}
		switch fsm.MustState() {
		case uploadActive:
			return file, nil
		case uploadFailed:
			return nil, fmt.Errorf("%w: %s", attachment.ErrProcessingFailed, file.Name)
		}

		if time.Now().Add(interval).After(deadline) {
			_ = fsm.Fire(triggerTimeout)
			log.Warn("audio file still processing", "waited", maxWait)
			return nil, fmt.Errorf("%w: %s after %s", llm.ErrTimeout, file.Name, maxWait)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		next, err := api.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("checking file state: %w", err)
		}
		file = next
		log.Debug("audio file state", "state", file.State)
	}
}
