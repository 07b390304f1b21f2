package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

// DefaultVaultCap bounds the local fallback vault.
const DefaultVaultCap = 200

// LocalVault is the kvstore-backed record repository used when the remote
// store is unreachable. The whole vault lives as one JSON array under the
// record-vault key, kept sorted by date descending and trimmed to cap so
// an extended outage cannot grow it without bound.
type LocalVault struct {
	store kvstore.Store
	cap   int
	mu    sync.Mutex
}

// NewLocalVault creates a vault with the given retention cap; cap <= 0
// falls back to DefaultVaultCap.
func NewLocalVault(store kvstore.Store, cap int) *LocalVault {
	if cap <= 0 {
		cap = DefaultVaultCap
	}
	return &LocalVault{store: store, cap: cap}
}

func (v *LocalVault) load() ([]*SavedRecord, error) {
	raw, err := v.store.Get(kvstore.KeyRecordVault)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read local vault: %w", err)
	}
	var records []*SavedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode local vault: %w", err)
	}
	return records, nil
}

func (v *LocalVault) persist(records []*SavedRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode local vault: %w", err)
	}
	if err := v.store.Set(kvstore.KeyRecordVault, raw); err != nil {
		return fmt.Errorf("write local vault: %w", err)
	}
	return nil
}

func sortByDateDesc(records []*SavedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}

func (v *LocalVault) Save(_ context.Context, rec *SavedRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range records {
		if existing.ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	sortByDateDesc(records)
	if len(records) > v.cap {
		// Sorted date-descending, so the overflow at the tail is the
		// oldest set.
		records = records[:v.cap]
	}
	return v.persist(records)
}

func (v *LocalVault) List(_ context.Context) ([]*SavedRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.load()
	if err != nil {
		return nil, err
	}
	sortByDateDesc(records)
	return records, nil
}

func (v *LocalVault) Get(_ context.Context, id string) (*SavedRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

func (v *LocalVault) Delete(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	return v.persist(kept)
}

// Count returns the number of locally held records.
func (v *LocalVault) Count(_ context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	records, err := v.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
