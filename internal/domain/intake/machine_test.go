package intake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

type mockSubmitter struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when set, SubmitSnapshot waits until closed
	lastArg *PatientSnapshot
}

func (s *mockSubmitter) SubmitSnapshot(ctx context.Context, frozen *PatientSnapshot, language, imageURI string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.lastArg = frozen
	block := s.block
	err := s.err
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "REC-1", nil
}

func newTestMachine(t *testing.T, sub Submitter) (*Machine, kvstore.Store) {
	t.Helper()
	scratch := kvstore.NewMemoryStore()
	m := NewMachine(scratch, sub, zerolog.Nop(), WithDebounce(10*time.Millisecond))
	t.Cleanup(m.Close)
	return m, scratch
}

func advanceToLabs(t *testing.T, m *Machine) {
	t.Helper()
	if _, err := m.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := m.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.Step() != StepLabs {
		t.Fatalf("expected labs step, got %s", m.Step())
	}
}

func TestMachine_ForwardBackNavigation(t *testing.T) {
	m, _ := newTestMachine(t, &mockSubmitter{})

	if m.Step() != StepProfile {
		t.Fatalf("expected profile start, got %s", m.Step())
	}
	if step, _ := m.Back(); step != StepProfile {
		t.Errorf("back on first step should stay, got %s", step)
	}
	advanceToLabs(t, m)
	if _, err := m.Next(); !errors.Is(err, ErrResultRequiresSubmit) {
		t.Errorf("expected ErrResultRequiresSubmit from labs, got %v", err)
	}
	if step, _ := m.Back(); step != StepNarrative {
		t.Errorf("expected narrative after back, got %s", step)
	}
}

func TestMachine_SubmitOnlyFromLabs(t *testing.T) {
	m, _ := newTestMachine(t, &mockSubmitter{})
	if _, err := m.Submit(context.Background(), "English", ""); !errors.Is(err, ErrNotOnLabs) {
		t.Fatalf("expected ErrNotOnLabs, got %v", err)
	}
}

func TestMachine_SuccessfulSubmitAdvancesAndClearsDraft(t *testing.T) {
	sub := &mockSubmitter{}
	m, scratch := newTestMachine(t, sub)

	m.Update(func(p *PatientSnapshot) {
		p.Name = "Ana"
		p.Complaints = "fever"
	})
	// Force the autosave through so the scratch slot is populated.
	time.Sleep(50 * time.Millisecond)
	if _, err := scratch.Get(kvstore.KeyDraft); err != nil {
		t.Fatalf("expected autosaved draft: %v", err)
	}

	advanceToLabs(t, m)
	id, err := m.Submit(context.Background(), "English", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "REC-1" {
		t.Errorf("unexpected record id %s", id)
	}
	if m.Step() != StepResult {
		t.Errorf("expected result step, got %s", m.Step())
	}
	if m.LastRecordID() != "REC-1" {
		t.Errorf("expected last record id to be retained")
	}
	if _, err := scratch.Get(kvstore.KeyDraft); !errors.Is(err, kvstore.ErrKeyNotFound) {
		t.Errorf("expected scratch slot cleared, got %v", err)
	}
}

func TestMachine_FailedSubmitStaysOnLabsAndKeepsDraft(t *testing.T) {
	sub := &mockSubmitter{err: errors.New("provider down")}
	m, scratch := newTestMachine(t, sub)

	m.Update(func(p *PatientSnapshot) { p.Name = "Ana" })
	time.Sleep(50 * time.Millisecond)

	advanceToLabs(t, m)
	if _, err := m.Submit(context.Background(), "English", ""); err == nil {
		t.Fatal("expected submit error")
	}
	if m.Step() != StepLabs {
		t.Errorf("expected to stay on labs, got %s", m.Step())
	}
	if _, err := scratch.Get(kvstore.KeyDraft); err != nil {
		t.Errorf("draft must survive a failed submit: %v", err)
	}
	if m.Draft().Name != "Ana" {
		t.Error("in-memory draft must survive a failed submit")
	}
}

func TestMachine_SecondSubmitRejectedWhileInFlight(t *testing.T) {
	block := make(chan struct{})
	sub := &mockSubmitter{block: block}
	m, _ := newTestMachine(t, sub)
	advanceToLabs(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "English", "")
		done <- err
	}()

	// Wait for the first submission to be inside the submitter.
	deadline := time.After(time.Second)
	for {
		sub.mu.Lock()
		started := sub.calls > 0
		sub.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first submit never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := m.Submit(context.Background(), "English", ""); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestMachine_SubmitFreezesSnapshot(t *testing.T) {
	sub := &mockSubmitter{}
	m, _ := newTestMachine(t, sub)
	m.Update(func(p *PatientSnapshot) {
		p.Name = "Ana"
		p.DOB = "2000-03-15"
	})
	advanceToLabs(t, m)
	if _, err := m.Submit(context.Background(), "English", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Mutations after submission must not reach the frozen copy.
	m.Reset()
	m.Update(func(p *PatientSnapshot) { p.Name = "Budi" })
	if sub.lastArg.Name != "Ana" {
		t.Errorf("frozen snapshot was aliased: %s", sub.lastArg.Name)
	}
	if sub.lastArg.Age == 0 {
		t.Error("frozen snapshot should carry the derived age")
	}
}

func TestMachine_SubmitRejectsInvalidFields(t *testing.T) {
	sub := &mockSubmitter{}
	m, _ := newTestMachine(t, sub)
	m.Update(func(p *PatientSnapshot) { p.Vitals.HeartRate = "fast" })
	advanceToLabs(t, m)
	if _, err := m.Submit(context.Background(), "English", ""); err == nil {
		t.Fatal("expected validation error")
	}
	if sub.calls != 0 {
		t.Error("submitter must not be called for an invalid draft")
	}
}

func TestMachine_RehydratesDraft(t *testing.T) {
	scratch := kvstore.NewMemoryStore()
	saved := NewSnapshot()
	saved.Name = "Ana"
	saved.DOB = "2000-03-15"
	raw, _ := json.Marshal(saved)
	scratch.Set(kvstore.KeyDraft, raw)

	m := NewMachine(scratch, &mockSubmitter{}, zerolog.Nop(),
		WithClock(func() time.Time { return date("2024-03-15") }))
	defer m.Close()

	d := m.Draft()
	if d.Name != "Ana" {
		t.Errorf("expected rehydrated draft, got %q", d.Name)
	}
	if d.Age != 24 {
		t.Errorf("rehydrated draft should renormalize age, got %d", d.Age)
	}
}

func TestMachine_RehydrateIgnoresCorruptDraft(t *testing.T) {
	scratch := kvstore.NewMemoryStore()
	scratch.Set(kvstore.KeyDraft, []byte(`{broken`))
	m := NewMachine(scratch, &mockSubmitter{}, zerolog.Nop())
	defer m.Close()
	if m.Draft().Name != "" {
		t.Error("corrupt draft should be discarded")
	}
}

func TestMachine_AutosaveDebounceCoalesces(t *testing.T) {
	scratch := &countingStore{Store: kvstore.NewMemoryStore()}
	m := NewMachine(scratch, &mockSubmitter{}, zerolog.Nop(), WithDebounce(30*time.Millisecond))
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.Update(func(p *PatientSnapshot) { p.Name = "Ana" })
	}
	time.Sleep(100 * time.Millisecond)

	scratch.mu.Lock()
	sets := scratch.sets
	scratch.mu.Unlock()
	if sets != 1 {
		t.Errorf("expected 1 coalesced autosave, got %d", sets)
	}
}

func TestMachine_ResetClearsSession(t *testing.T) {
	m, scratch := newTestMachine(t, &mockSubmitter{})
	m.Update(func(p *PatientSnapshot) { p.Name = "Ana" })
	advanceToLabs(t, m)
	if _, err := m.Submit(context.Background(), "English", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	m.Reset()
	if m.Step() != StepProfile {
		t.Errorf("expected profile after reset, got %s", m.Step())
	}
	if m.Draft().Name != "" {
		t.Error("expected fresh draft after reset")
	}
	if m.LastRecordID() != "" {
		t.Error("expected cleared record id after reset")
	}
	if _, err := scratch.Get(kvstore.KeyDraft); !errors.Is(err, kvstore.ErrKeyNotFound) {
		t.Error("expected scratch slot cleared after reset")
	}
}

func TestMachine_ResetDuringInFlightSubmitDiscardsStaleResult(t *testing.T) {
	block := make(chan struct{})
	sub := &mockSubmitter{block: block}
	m, scratch := newTestMachine(t, sub)
	m.Update(func(p *PatientSnapshot) { p.Name = "Ana" })
	advanceToLabs(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "English", "")
		done <- err
	}()

	deadline := time.After(time.Second)
	for {
		sub.mu.Lock()
		started := sub.calls > 0
		sub.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first submit never started")
		case <-time.After(time.Millisecond):
		}
	}

	// A new session begins while the old round trip is still running.
	m.Reset()
	m.Update(func(p *PatientSnapshot) { p.Name = "Budi" })
	advanceToLabs(t, m)

	// The guard must hold across the reset: no second provider call is
	// admitted until the stale trip resolves.
	if _, err := m.Submit(context.Background(), "English", ""); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight during stale trip, got %v", err)
	}
	sub.mu.Lock()
	calls := sub.calls
	sub.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", calls)
	}

	// Let the new session's autosave land before the stale trip completes.
	time.Sleep(50 * time.Millisecond)

	close(block)
	if err := <-done; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset for the stale submit, got %v", err)
	}

	// The stale completion must leave the new session untouched.
	if m.Step() != StepLabs {
		t.Errorf("stale submit moved the new session to %s", m.Step())
	}
	if m.LastRecordID() != "" {
		t.Errorf("stale submit leaked a record id: %s", m.LastRecordID())
	}
	if m.Draft().Name != "Budi" {
		t.Errorf("new session draft was clobbered: %q", m.Draft().Name)
	}
	if _, err := scratch.Get(kvstore.KeyDraft); err != nil {
		t.Errorf("stale submit deleted the new session's scratch draft: %v", err)
	}

	// With the stale trip resolved, the new session submits normally.
	sub.mu.Lock()
	sub.block = nil
	sub.mu.Unlock()
	id, err := m.Submit(context.Background(), "English", "")
	if err != nil {
		t.Fatalf("submit after reset: %v", err)
	}
	if id != "REC-1" || m.Step() != StepResult {
		t.Errorf("new session submit did not complete: id=%s step=%s", id, m.Step())
	}
}

func TestMachine_LateAutosaveCannotResurrectSubmittedDraft(t *testing.T) {
	sub := &mockSubmitter{}
	m, scratch := newTestMachine(t, sub)
	m.Update(func(p *PatientSnapshot) { p.Name = "Ana" })
	time.Sleep(50 * time.Millisecond)

	advanceToLabs(t, m)
	if _, err := m.Submit(context.Background(), "English", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := scratch.Get(kvstore.KeyDraft); !errors.Is(err, kvstore.ErrKeyNotFound) {
		t.Fatalf("expected scratch cleared by submit, got %v", err)
	}

	// A timer that fired during submission runs its flush only after the
	// completion releases the lock. It must not re-write the cleared slot.
	m.flushDraft()
	if _, err := scratch.Get(kvstore.KeyDraft); !errors.Is(err, kvstore.ErrKeyNotFound) {
		t.Error("late autosave re-wrote a submitted draft")
	}
}

type countingStore struct {
	kvstore.Store
	mu   sync.Mutex
	sets int
}

func (s *countingStore) Set(key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(key, value)
}
