// Package store persists participant accounts between sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/shopspring/decimal"
)

var ErrUnknownDriver = errors.New("unknown account store driver")

type AccountStore interface {
	// SaveAccounts upserts the given snapshots under sessionID.
	SaveAccounts(ctx context.Context, sessionID string, snaps []ledger.Snapshot) error
	// LoadAccounts returns the latest saved state of every participant,
	// ordered by participant id.
	LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error)
	Close() error
}

type accountRecord struct {
	ParticipantID string           `json:"participant_id"`
	BankBalance   decimal.Decimal  `json:"bank_balance"`
	Cash          decimal.Decimal  `json:"cash"`
	Positions     map[string]int64 `json:"positions"`
	SessionID     string           `json:"session_id"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func newAccountRecord(sessionID string, snap ledger.Snapshot, now time.Time) accountRecord {
	return accountRecord{
		ParticipantID: snap.ParticipantID,
		BankBalance:   snap.BankBalance,
		Cash:          snap.Cash,
		Positions:     snap.Positions,
		SessionID:     sessionID,
		UpdatedAt:     now,
	}
}

func (r accountRecord) snapshot() ledger.Snapshot {
	positions := r.Positions
	if positions == nil {
		positions = make(map[string]int64)
	}
	return ledger.Snapshot{
		ParticipantID: r.ParticipantID,
		BankBalance:   r.BankBalance,
		Cash:          r.Cash,
		Positions:     positions,
	}
}
