package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/alcortex/alcortex/internal/platform/kvstore"
)

// LocalLog is the kvstore-backed fallback log, one JSON array under the
// activity key, newest first.
type LocalLog struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewLocalLog(store kvstore.Store) *LocalLog {
	return &LocalLog{store: store}
}

func (l *LocalLog) load() ([]*Entry, error) {
	raw, err := l.store.Get(kvstore.KeyActivityLog)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read local activity log: %w", err)
	}
	var entries []*Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode local activity log: %w", err)
	}
	return entries, nil
}

func (l *LocalLog) Append(_ context.Context, e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}
	entries = append([]*Entry{e}, entries...)
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode local activity log: %w", err)
	}
	if err := l.store.Set(kvstore.KeyActivityLog, raw); err != nil {
		return fmt.Errorf("write local activity log: %w", err)
	}
	return nil
}

func (l *LocalLog) List(_ context.Context) ([]*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
