package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountModel struct {
	ParticipantID string          `gorm:"column:participant_id;primaryKey"`
	BankBalance   decimal.Decimal `gorm:"column:bank_balance;type:numeric"`
	Cash          decimal.Decimal `gorm:"column:cash;type:numeric"`
	Positions     string          `gorm:"column:positions;type:jsonb"`
	SessionID     string          `gorm:"column:session_id"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

type AccountSQLRepo struct {
	db *gorm.DB
}

func NewAccountSQLRepo(db *gorm.DB) *AccountSQLRepo {
	return &AccountSQLRepo{
		db: db,
	}
}

func (r *AccountSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func toModel(rec accountRecord) (*AccountModel, error) {
	positions, err := json.Marshal(rec.Positions)
	if err != nil {
		return nil, err
	}
	return &AccountModel{
		ParticipantID: rec.ParticipantID,
		BankBalance:   rec.BankBalance,
		Cash:          rec.Cash,
		Positions:     string(positions),
		SessionID:     rec.SessionID,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

func (m *AccountModel) record() (accountRecord, error) {
	rec := accountRecord{
		ParticipantID: m.ParticipantID,
		BankBalance:   m.BankBalance,
		Cash:          m.Cash,
		SessionID:     m.SessionID,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Positions != "" {
		if err := json.Unmarshal([]byte(m.Positions), &rec.Positions); err != nil {
			return accountRecord{}, fmt.Errorf("positions of %s: %w", m.ParticipantID, err)
		}
	}
	return rec, nil
}

func (r *AccountSQLRepo) SaveAccounts(ctx context.Context, sessionID string, snaps []ledger.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]*AccountModel, 0, len(snaps))
	for _, snap := range snaps {
		m, err := toModel(newAccountRecord(sessionID, snap, now))
		if err != nil {
			return err
		}
		records = append(records, m)
	}

	return r.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}},
		UpdateAll: true,
	}).Create(records).Error
}

func (r *AccountSQLRepo) LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error) {
	var models []*AccountModel
	if err := r.dbWithContext(ctx).Order("participant_id").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]ledger.Snapshot, 0, len(models))
	for _, m := range models {
		rec, err := m.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec.snapshot())
	}
	return out, nil
}

// Close leaves the pool open; it belongs to whoever built the gorm.DB.
func (r *AccountSQLRepo) Close() error {
	return nil
}
