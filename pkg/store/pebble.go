package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/joripage/exchange-sim/pkg/ledger"
)

var accountPrefix = []byte("account/")

// PebbleStore keeps one JSON record per participant under account/<id>.
type PebbleStore struct {
	db  *pebble.DB
	now func() time.Time
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20),
		MemTableSize: 16 << 20,
		MaxOpenFiles: 256,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db, now: time.Now}, nil
}

func accountKey(participantID string) []byte {
	return append(append([]byte(nil), accountPrefix...), participantID...)
}

// keyUpperBound is the smallest key greater than every key with prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) SaveAccounts(_ context.Context, sessionID string, snaps []ledger.Snapshot) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	now := s.now().UTC()
	for _, snap := range snaps {
		data, err := json.Marshal(newAccountRecord(sessionID, snap, now))
		if err != nil {
			return fmt.Errorf("failed to marshal account %s: %w", snap.ParticipantID, err)
		}
		if err := batch.Set(accountKey(snap.ParticipantID), data, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	return nil
}

func (s *PebbleStore) LoadAccounts(_ context.Context) ([]ledger.Snapshot, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: accountPrefix,
		UpperBound: keyUpperBound(accountPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ledger.Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		var rec accountRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account %s: %w", iter.Key(), err)
		}
		out = append(out, rec.snapshot())
	}
	return out, iter.Error()
}

// LoadAccount returns nil when the participant was never saved.
func (s *PebbleStore) LoadAccount(participantID string) (*ledger.Snapshot, error) {
	data, closer, err := s.db.Get(accountKey(participantID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var rec accountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	snap := rec.snapshot()
	return &snap, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
