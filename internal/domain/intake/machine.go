package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

// Step is a wizard position.
type Step string

const (
	StepProfile   Step = "profile"
	StepNarrative Step = "narrative"
	StepLabs      Step = "labs"
	StepResult    Step = "result"
)

// stepOrder defines forward navigation. StepLabs → StepResult is absent on
// purpose: that transition only happens through Submit.
var stepOrder = map[Step]Step{
	StepProfile:   StepNarrative,
	StepNarrative: StepLabs,
}

var stepBack = map[Step]Step{
	StepNarrative: StepProfile,
	StepLabs:      StepNarrative,
}

var (
	// ErrSubmitInFlight is returned when a second submission is attempted
	// while one is outstanding. At most one diagnostic call runs at a time.
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	// ErrNotOnLabs is returned when Submit is called from any step other
	// than the labs step.
	ErrNotOnLabs = errors.New("submission is only allowed from the labs step")
	// ErrResultRequiresSubmit is returned when Next is called on the labs
	// step; the result step is reachable only through a successful submit.
	ErrResultRequiresSubmit = errors.New("the result step requires a successful submission")
	// ErrSessionComplete is returned for navigation on a finished session.
	ErrSessionComplete = errors.New("session is complete; reset to start a new intake")
	// ErrSessionReset is returned to a submitter whose session was reset
	// while the round trip was in flight. The result is discarded.
	ErrSessionReset = errors.New("session was reset while the submission was in flight")
)

// DefaultAutosaveDebounce coalesces a burst of draft edits into one write.
const DefaultAutosaveDebounce = 2 * time.Second

// Submitter runs the diagnostic round trip for a frozen snapshot and
// persists the resulting record, returning its id. The machine treats the
// whole trip as one guarded operation: any error keeps the wizard on labs.
type Submitter interface {
	SubmitSnapshot(ctx context.Context, frozen *PatientSnapshot, language, imageURI string) (recordID string, err error)
}

// Machine owns the intake draft and gates step progression. All state is
// serialized under one mutex; the autosave timer fires off-thread but
// re-enters through the same lock.
type Machine struct {
	mu           sync.Mutex
	step         Step
	draft        *PatientSnapshot
	submitting   bool
	session      uint64
	lastRecordID string

	scratch   kvstore.Store
	submitter Submitter
	debounce  time.Duration
	timer     *time.Timer
	now       func() time.Time
	logger    zerolog.Logger
}

// Option customizes a Machine.
type Option func(*Machine)

// WithDebounce overrides the autosave debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(m *Machine) { m.debounce = d }
}

// WithClock overrides the time source; used by tests for age derivation.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a machine starting at the profile step. If the scratch
// slot holds a previously autosaved draft it is rehydrated as the starting
// snapshot, so a process restart never loses entered data.
func NewMachine(scratch kvstore.Store, submitter Submitter, logger zerolog.Logger, opts ...Option) *Machine {
	m := &Machine{
		step:      StepProfile,
		draft:     NewSnapshot(),
		scratch:   scratch,
		submitter: submitter,
		debounce:  DefaultAutosaveDebounce,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	if raw, err := scratch.Get(kvstore.KeyDraft); err == nil {
		var rehydrated PatientSnapshot
		if err := json.Unmarshal(raw, &rehydrated); err != nil {
			logger.Warn().Err(err).Msg("discarding unreadable intake draft")
		} else {
			rehydrated.Normalize(m.now())
			m.draft = &rehydrated
			logger.Info().Msg("rehydrated intake draft from scratch slot")
		}
	}
	return m
}

// Step returns the current wizard position.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Draft returns a deep copy of the current draft. Callers never see the
// machine's own mutable state.
func (m *Machine) Draft() *PatientSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.Clone()
}

// LastRecordID returns the id of the record produced by the most recent
// successful submission, or "".
func (m *Machine) LastRecordID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRecordID
}

// Update mutates the draft under the machine's lock, recomputes the derived
// age, and schedules a debounced autosave of the raw draft.
func (m *Machine) Update(fn func(*PatientSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.draft)
	m.draft.Normalize(m.now())
	m.scheduleAutosaveLocked()
}

// SetDraft replaces the whole draft, used by the HTTP layer where the
// client ships the full snapshot on every edit.
func (m *Machine) SetDraft(p *PatientSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = p.Clone()
	m.draft.Normalize(m.now())
	m.scheduleAutosaveLocked()
}

func (m *Machine) scheduleAutosaveLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.flushDraft)
}

// flushDraft writes the draft to the scratch slot. Empty drafts are not
// worth persisting. Failures are logged and absorbed: autosave must never
// interfere with the wizard.
func (m *Machine) flushDraft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushDraftLocked()
}

func (m *Machine) flushDraftLocked() {
	if m.step == StepResult {
		// The draft was submitted and its scratch slot cleared; a timer
		// that fired late must not resurrect it.
		return
	}
	if m.draft.Empty() {
		return
	}
	raw, err := json.Marshal(m.draft)
	if err != nil {
		m.logger.Error().Err(err).Msg("marshal intake draft")
		return
	}
	if err := m.scratch.Set(kvstore.KeyDraft, raw); err != nil {
		m.logger.Error().Err(err).Msg("autosave intake draft")
		return
	}
	m.logger.Debug().Msg("intake draft autosaved")
}

// Next advances one step. The labs step cannot be left forward except
// through Submit.
func (m *Machine) Next() (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.step {
	case StepLabs:
		return m.step, ErrResultRequiresSubmit
	case StepResult:
		return m.step, ErrSessionComplete
	}
	m.step = stepOrder[m.step]
	return m.step, nil
}

// Back moves one step towards the profile. On the first step it is a no-op;
// on a completed session it refuses (reset starts the next intake).
func (m *Machine) Back() (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step == StepResult {
		return m.step, ErrSessionComplete
	}
	if prev, ok := stepBack[m.step]; ok {
		m.step = prev
	}
	return m.step, nil
}

// Reset starts a new intake session: fresh draft, profile step, scratch
// slot cleared. An in-flight submission keeps its guard: the new session
// cannot submit until the old round trip resolves, and that resolution is
// discarded because the session generation has moved on.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.session++
	m.draft = NewSnapshot()
	m.step = StepProfile
	m.lastRecordID = ""
	if err := m.scratch.Delete(kvstore.KeyDraft); err != nil {
		m.logger.Warn().Err(err).Msg("clear intake draft")
	}
}

// Submit freezes the draft and runs the full request → validate → persist
// round trip. Only a fully successful trip advances to the result step and
// clears the scratch slot; on any failure the machine stays on labs with
// the draft (and its autosaved copy) intact.
func (m *Machine) Submit(ctx context.Context, language, imageURI string) (string, error) {
	m.mu.Lock()
	if m.submitting {
		m.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	if m.step != StepLabs {
		m.mu.Unlock()
		return "", ErrNotOnLabs
	}
	if errs := ValidateSnapshot(m.draft, m.now()); len(errs) > 0 {
		m.mu.Unlock()
		return "", fmt.Errorf("draft has invalid fields: %w", errors.Join(errs...))
	}
	m.submitting = true
	gen := m.session
	frozen := m.draft.Clone()
	frozen.Normalize(m.now())
	m.mu.Unlock()

	recordID, err := m.submitter.SubmitSnapshot(ctx, frozen, language, imageURI)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false
	if m.session != gen {
		// The session was reset mid-flight. The machine now belongs to a
		// new intake; leave its step, draft, and scratch slot untouched.
		if err != nil {
			return "", err
		}
		return "", ErrSessionReset
	}
	if err != nil {
		return "", err
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if derr := m.scratch.Delete(kvstore.KeyDraft); derr != nil {
		m.logger.Warn().Err(derr).Msg("clear intake draft after submit")
	}
	m.step = StepResult
	m.lastRecordID = recordID
	return recordID, nil
}

// Close stops the autosave timer and flushes any pending draft so a clean
// shutdown inside the debounce window still persists the latest edits.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.flushDraftLocked()
}
