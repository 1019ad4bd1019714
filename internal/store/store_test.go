package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
)

// fakeQuerier is a hand-written double for the narrow querier interface.
// pgx does not implement database/sql's driver interface, so a generic
// SQL mock can't sit under pgxpool; recording calls directly is the
// approach the rest of the pack's Postgres-backed services use instead.
type fakeQuerier struct {
	execCalls  []execCall
	execTag    pgconn.CommandTag
	execErr    error
	queryRowFn func(sql string, args []any) pgx.Row
	queryFn    func(sql string, args []any) (pgx.Rows, error)
}

type execCall struct {
	sql  string
	args []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, execCall{sql: sql, args: args})
	return f.execTag, f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.queryFn(sql, args)
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFn(sql, args)
}

// fakeRow implements pgx.Row over a fixed slice of values, or returns
// pgx.ErrNoRows when empty.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = values[i].(string)
		case *bool:
			*d = values[i].(bool)
		case *int:
			*d = values[i].(int)
		default:
			panic("fakeRow: unsupported scan target")
		}
	}
	return nil
}

func TestInsertOrderCancelled_DedupesOnConflict(t *testing.T) {
	fq := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	s := newForTest(fq)

	inserted, err := s.InsertOrderCancelled(context.Background(), domain.OrderCancelledEvent{
		EventKey: domain.EventKey{BlockHash: "0xb", TxHash: "0xt", LogIndex: 0, Block: 10},
		OrderHash: "0xorder",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	require.Len(t, fq.execCalls, 1)
	assert.Contains(t, fq.execCalls[0].sql, "ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING")
}

func TestInsertOrderCancelled_NoOpOnReplay(t *testing.T) {
	fq := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 0")}
	s := newForTest(fq)

	inserted, err := s.InsertOrderCancelled(context.Background(), domain.OrderCancelledEvent{
		EventKey:  domain.EventKey{BlockHash: "0xb", TxHash: "0xt", LogIndex: 0, Block: 10},
		OrderHash: "0xorder",
	})
	require.NoError(t, err)
	assert.False(t, inserted, "replaying the same event key must not report a fresh insert")
}

func TestRegisterContract_IsIdempotent(t *testing.T) {
	fq := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	s := newForTest(fq)

	err := s.RegisterContract(context.Background(), "0xcontract", domain.ContractERC721)
	require.NoError(t, err)
	require.Len(t, fq.execCalls, 1)
	assert.Equal(t, "0xcontract", fq.execCalls[0].args[0])
	assert.Equal(t, "erc721", fq.execCalls[0].args[1])
	assert.Contains(t, fq.execCalls[0].sql, "ON CONFLICT (address) DO NOTHING")
}

func TestIsIndexedContract_NotFound(t *testing.T) {
	fq := &fakeQuerier{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{err: pgx.ErrNoRows}
		},
	}
	s := newForTest(fq)

	ok, err := s.IsIndexedContract(context.Background(), "0xnope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsIndexedContract_Found(t *testing.T) {
	fq := &fakeQuerier{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{values: []any{1}}
		},
	}
	s := newForTest(fq)

	ok, err := s.IsIndexedContract(context.Background(), "0xyes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsOrderCancelled_True(t *testing.T) {
	fq := &fakeQuerier{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{values: []any{true}}
		},
	}
	s := newForTest(fq)

	ok, err := s.IsOrderCancelled(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsOrderCancelled_False(t *testing.T) {
	fq := &fakeQuerier{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return fakeRow{values: []any{false}}
		},
	}
	s := newForTest(fq)

	ok, err := s.IsOrderCancelled(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCancelled_ExcludesTerminalStates(t *testing.T) {
	fq := &fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 1")}
	s := newForTest(fq)

	err := s.MarkCancelled(context.Background(), "0xhash")
	require.NoError(t, err)
	require.Len(t, fq.execCalls, 1)
	assert.Contains(t, fq.execCalls[0].sql, "fillability_status NOT IN ('cancelled', 'filled')")
}
