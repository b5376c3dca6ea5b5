package openaicompat

import (
	"context"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/thelp-go/internal/logger"
)

const (
	stateAvailable   = "available"
	stateUnavailable = "unavailable"

	triggerQuotaExceeded = "quota_exceeded"
	triggerRecovered     = "recovered"
)

// availability tracks whether the account still has quota. Once tripped it
// stays unavailable unless a re-probe cooldown is configured.
type availability struct {
	mu           sync.Mutex
	fsm          *stateless.StateMachine
	trippedAt    time.Time
	reprobeAfter time.Duration
	now          func() time.Time
}

func newAvailability(available bool, reprobeAfter time.Duration) *availability {
	initial := stateAvailable
	if !available {
		initial = stateUnavailable
	}

	fsm := stateless.NewStateMachine(initial)
	fsm.Configure(stateAvailable).
		Permit(triggerQuotaExceeded, stateUnavailable).
		Ignore(triggerRecovered)
	fsm.Configure(stateUnavailable).
		Permit(triggerRecovered, stateAvailable).
		Ignore(triggerQuotaExceeded)
	fsm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		logger.L.Warn("provider availability changed", "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})

	return &availability{
		fsm:          fsm,
		trippedAt:    time.Now(),
		reprobeAfter: reprobeAfter,
		now:          time.Now,
	}
}

func (a *availability) available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fsm.MustState() == stateAvailable
}

func (a *availability) trip() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fsm.MustState() == stateAvailable {
		a.trippedAt = a.now()
	}
	if err := a.fsm.Fire(triggerQuotaExceeded); err != nil {
		logger.L.Error("availability transition failed", "error", err)
	}
}

func (a *availability) recover() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fsm.Fire(triggerRecovered); err != nil {
		logger.L.Error("availability transition failed", "error", err)
	}
}

// claimReprobe reports whether the caller should probe now. At most one
// caller per cooldown period gets true.
func (a *availability) claimReprobe() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reprobeAfter <= 0 || a.fsm.MustState() != stateUnavailable {
		return false
	}
	if a.now().Sub(a.trippedAt) < a.reprobeAfter {
		return false
	}
	a.trippedAt = a.now()
	return true
}
