package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joripage/exchange-sim/pkg/orderbook"
)

// Registry maps participant ids to their accounts.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

var _ orderbook.LedgerProvider = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]*Account),
	}
}

func (r *Registry) Register(acc *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acc.participantID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, acc.participantID)
	}
	r.accounts[acc.participantID] = acc
	return nil
}

func (r *Registry) Account(participantID string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return acc, nil
}

func (r *Registry) Ledger(participantID string) (orderbook.Ledger, error) {
	acc, err := r.Account(participantID)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Snapshots returns every account's snapshot ordered by participant id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	accounts := make([]*Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		accounts = append(accounts, acc)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}
