package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is the record vault façade: remote-primary with a silent local
// fallback. Callers only ever see an error when both paths fail. Remote
// and local result sets are never merged in a single call; each read is
// served deterministically by one store.
type Store struct {
	remote  Repository
	local   *LocalVault
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStore wires the façade. timeout bounds each remote attempt before
// falling back.
func NewStore(remote Repository, local *LocalVault, timeout time.Duration, logger zerolog.Logger) *Store {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Store{remote: remote, local: local, timeout: timeout, logger: logger}
}

func (s *Store) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Save persists a record, remote first. A record written locally during an
// outage stays local until explicitly re-synced; there is no background
// reconciliation.
func (s *Store) Save(ctx context.Context, rec *SavedRecord) error {
	rctx, cancel := s.remoteCtx(ctx)
	remoteErr := s.remote.Save(rctx, rec)
	cancel()
	if remoteErr == nil {
		return nil
	}

	s.logger.Warn().Err(remoteErr).Str("record_id", rec.ID).
		Msg("remote save failed, writing to local vault")

	if localErr := s.local.Save(ctx, rec); localErr != nil {
		return fmt.Errorf("record %s not persisted: remote: %v; local: %w", rec.ID, remoteErr, localErr)
	}
	return nil
}

// List returns all records date-descending from the remote store, or from
// the local vault when the remote is unreachable.
func (s *Store) List(ctx context.Context) ([]*SavedRecord, error) {
	rctx, cancel := s.remoteCtx(ctx)
	records, remoteErr := s.remote.List(rctx)
	cancel()
	if remoteErr == nil {
		return records, nil
	}

	s.logger.Warn().Err(remoteErr).Msg("remote list failed, serving local vault")
	records, localErr := s.local.List(ctx)
	if localErr != nil {
		return nil, fmt.Errorf("records unavailable: remote: %v; local: %w", remoteErr, localErr)
	}
	return records, nil
}

// Get fetches one record by id. A definitive remote "not found" is final;
// only remote unavailability falls back to the local vault.
func (s *Store) Get(ctx context.Context, id string) (*SavedRecord, error) {
	rctx, cancel := s.remoteCtx(ctx)
	rec, remoteErr := s.remote.Get(rctx, id)
	cancel()
	if remoteErr == nil {
		return rec, nil
	}
	if errors.Is(remoteErr, ErrNotFound) {
		return nil, ErrNotFound
	}

	s.logger.Warn().Err(remoteErr).Str("record_id", id).
		Msg("remote get failed, serving local vault")
	rec, localErr := s.local.Get(ctx, id)
	if localErr != nil {
		if errors.Is(localErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record %s unavailable: remote: %v; local: %w", id, remoteErr, localErr)
	}
	return rec, nil
}

// Delete removes a record from both stores; after an outage the same id
// may exist in each. It fails only when neither store could be updated.
func (s *Store) Delete(ctx context.Context, id string) error {
	rctx, cancel := s.remoteCtx(ctx)
	remoteErr := s.remote.Delete(rctx, id)
	cancel()

	localErr := s.local.Delete(ctx, id)
	if remoteErr != nil && localErr != nil {
		return fmt.Errorf("record %s not deleted: remote: %v; local: %w", id, remoteErr, localErr)
	}
	if remoteErr != nil {
		s.logger.Warn().Err(remoteErr).Str("record_id", id).
			Msg("remote delete failed; removed from local vault only")
	}
	return nil
}

// SyncState reports how far the local vault has diverged from the remote
// store. No automatic reconciliation is performed.
type SyncState struct {
	RemoteReachable bool `json:"remoteReachable"`
	LocalRecords    int  `json:"localRecords"`
	LocalOnly       int  `json:"localOnly"`
}

// Sync computes the current SyncState.
func (s *Store) Sync(ctx context.Context) (*SyncState, error) {
	localRecords, err := s.local.List(ctx)
	if err != nil {
		return nil, err
	}
	state := &SyncState{LocalRecords: len(localRecords)}

	rctx, cancel := s.remoteCtx(ctx)
	remoteRecords, remoteErr := s.remote.List(rctx)
	cancel()
	if remoteErr != nil {
		state.LocalOnly = len(localRecords)
		return state, nil
	}

	state.RemoteReachable = true
	remoteIDs := make(map[string]struct{}, len(remoteRecords))
	for _, rec := range remoteRecords {
		remoteIDs[rec.ID] = struct{}{}
	}
	for _, rec := range localRecords {
		if _, ok := remoteIDs[rec.ID]; !ok {
			state.LocalOnly++
		}
	}
	return state, nil
}
