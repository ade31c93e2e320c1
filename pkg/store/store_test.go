package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func snaps() []ledger.Snapshot {
	return []ledger.Snapshot{
		{ParticipantID: "T2", BankBalance: decimal.RequireFromString("250.5"), Cash: decimal.NewFromInt(10), Positions: map[string]int64{"AAPL": 3}},
		{ParticipantID: "T1", BankBalance: decimal.NewFromInt(1000), Cash: decimal.Zero, Positions: map[string]int64{}},
	}
}

func requireRoundTrip(t *testing.T, s AccountStore) {
	t.Helper()
	ctx := context.Background()

	loaded, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)

	require.NoError(t, s.SaveAccounts(ctx, "s1", snaps()))

	update := snaps()[:1]
	update[0].Cash = decimal.NewFromInt(42)
	require.NoError(t, s.SaveAccounts(ctx, "s2", update))

	loaded, err = s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "T1", loaded[0].ParticipantID)
	require.NotNil(t, loaded[0].Positions)
	require.Equal(t, "T2", loaded[1].ParticipantID)
	require.True(t, loaded[1].Cash.Equal(decimal.NewFromInt(42)))
	require.True(t, loaded[1].BankBalance.Equal(decimal.RequireFromString("250.5")))
	require.Equal(t, int64(3), loaded[1].Positions["AAPL"])

	acc := ledger.Restore(loaded[1])
	require.Equal(t, int64(3), acc.Position("AAPL"))
}

func TestInMemoryStore(t *testing.T) {
	requireRoundTrip(t, NewInMemoryStore())
}

func TestPebbleStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "accounts")
	s, err := NewPebbleStore(dir)
	require.NoError(t, err)
	requireRoundTrip(t, s)

	snap, err := s.LoadAccount("nobody")
	require.NoError(t, err)
	require.Nil(t, snap)
	require.NoError(t, s.Close())

	// reopening sees the same accounts
	s, err = NewPebbleStore(dir)
	require.NoError(t, err)
	defer s.Close()
	snap, err = s.LoadAccount("T1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.True(t, snap.BankBalance.Equal(decimal.NewFromInt(1000)))
}

func TestKeyUpperBound(t *testing.T) {
	require.Equal(t, []byte("account0"), keyUpperBound([]byte("account/")))
	require.Equal(t, []byte("b"), keyUpperBound([]byte{'a', 0xff}))
	require.Nil(t, keyUpperBound([]byte{0xff}))
}

func TestAccountModelPositions(t *testing.T) {
	m, err := toModel(newAccountRecord("s1", snaps()[0], time.Unix(0, 0)))
	require.NoError(t, err)
	require.JSONEq(t, `{"AAPL":3}`, m.Positions)
	require.Equal(t, "accounts", m.TableName())

	rec, err := m.record()
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.snapshot().Positions["AAPL"])

	_, err = (&AccountModel{ParticipantID: "X", Positions: "{"}).record()
	require.Error(t, err)

	empty, err := (&AccountModel{ParticipantID: "X"}).record()
	require.NoError(t, err)
	require.NotNil(t, empty.snapshot().Positions)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mongo"}, nil)
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = Open(Config{Driver: DriverPostgres}, nil)
	require.ErrorIs(t, err, ErrUnknownDriver)

	s, err := Open(Config{}, nil)
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, s)
}
