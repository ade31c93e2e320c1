package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joripage/exchange-sim/pkg/ledger"
)

// InMemoryStore keeps accounts for the life of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]accountRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]accountRecord),
	}
}

func (s *InMemoryStore) SaveAccounts(_ context.Context, sessionID string, snaps []ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, snap := range snaps {
		rec := newAccountRecord(sessionID, snap, now)
		positions := make(map[string]int64, len(snap.Positions))
		for k, v := range snap.Positions {
			positions[k] = v
		}
		rec.Positions = positions
		s.accounts[snap.ParticipantID] = rec
	}
	return nil
}

func (s *InMemoryStore) LoadAccounts(_ context.Context) ([]ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Snapshot, 0, len(s.accounts))
	for _, rec := range s.accounts {
		snap := rec.snapshot()
		positions := make(map[string]int64, len(snap.Positions))
		for k, v := range snap.Positions {
			positions[k] = v
		}
		snap.Positions = positions
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
