package reorg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	hashes      []string
	deleteCalls []string
}

func (f *fakeStore) OrderHashesForBlockHash(ctx context.Context, blockHash string) ([]string, error) {
	return f.hashes, nil
}
func (f *fakeStore) DeleteEventsForBlockHash(ctx context.Context, blockHash string) error {
	f.deleteCalls = append(f.deleteCalls, blockHash)
	return nil
}

type fakeEnqueuer struct{ enqueued []string }

func (f *fakeEnqueuer) EnqueueHashUpdate(ctx context.Context, orderHash string) error {
	f.enqueued = append(f.enqueued, orderHash)
	return nil
}

func TestRecover_DeletesThenReenqueuesAffectedOrders(t *testing.T) {
	fs := &fakeStore{hashes: []string{"0xa", "0xb"}}
	fe := &fakeEnqueuer{}
	w := New(fs, fe)

	err := w.Recover(context.Background(), "0xreorged")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xreorged"}, fs.deleteCalls)
	assert.ElementsMatch(t, []string{"0xa", "0xb"}, fe.enqueued)
}

func TestRecover_NoAffectedOrders_StillDeletes(t *testing.T) {
	fs := &fakeStore{}
	fe := &fakeEnqueuer{}
	w := New(fs, fe)

	err := w.Recover(context.Background(), "0xreorged")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xreorged"}, fs.deleteCalls)
	assert.Empty(t, fe.enqueued)
}
