package transfers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vend-service/vend_service/internal/domain/entities"
	"github.com/vend-service/vend_service/pkg/logger"
)

type fakeSource struct {
	name    string
	batches [][]entities.Transfer
	err     error
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchRecent(ctx context.Context) ([]entities.Transfer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

func tf(id string, observedAt int64) entities.Transfer {
	return entities.Transfer{ID: id, ObservedAt: observedAt, RawAmount: "1000000", Decimals: 6}
}

func TestPollNew_FirstFetchPrimesCursorWithoutEmitting(t *testing.T) {
	src := &fakeSource{name: "primary", batches: [][]entities.Transfer{
		{tf("old-2", 200), tf("old-1", 100)},
		{tf("new-1", 300), tf("old-2", 200)},
	}}
	p := NewPoller([]Source{src}, logger.NewNop(), nil)

	got := p.PollNew(context.Background())
	assert.Empty(t, got, "pre-existing history must not replay as payments")
	assert.Equal(t, int64(200), p.Cursor())

	got = p.PollNew(context.Background())
	require.Len(t, got, 2) // new-1 plus the at-cursor overlap old-2
	assert.Equal(t, "old-2", got[0].ID)
	assert.Equal(t, "new-1", got[1].ID)
	assert.Equal(t, int64(200), p.Cursor(), "polling alone must not commit the cursor")

	p.Advance(300)
	assert.Equal(t, int64(300), p.Cursor())
}

func TestCursor_OnlyMovesForward(t *testing.T) {
	src := &fakeSource{name: "primary", batches: [][]entities.Transfer{
		{tf("a", 500)},
		{tf("stale", 100)},
	}}
	p := NewPoller([]Source{src}, logger.NewNop(), nil)
	p.Restore(400)

	got := p.PollNew(context.Background())
	require.Len(t, got, 1)
	p.Advance(500)
	assert.Equal(t, int64(500), p.Cursor())

	got = p.PollNew(context.Background())
	assert.Empty(t, got)
	p.Advance(100)
	assert.Equal(t, int64(500), p.Cursor(), "cursor must never move backward")
}

func TestPollNew_AbandonedCycleRepollsUnhandledTransfers(t *testing.T) {
	// The explorer window stays the same across both polls.
	src := &fakeSource{name: "primary", batches: [][]entities.Transfer{
		{tf("c", 200), tf("b", 150), tf("a", 100)},
	}}
	p := NewPoller([]Source{src}, logger.NewNop(), nil)
	p.Restore(50)

	got := p.PollNew(context.Background())
	require.Len(t, got, 3)

	// Only the first transfer was handled before the cycle was abandoned.
	p.Advance(100)

	got = p.PollNew(context.Background())
	require.Len(t, got, 3) // a overlaps at-cursor; b and c must reappear
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestPollNew_FallsBackToSecondary(t *testing.T) {
	primary := &fakeSource{name: "primary", err: errors.New("status 502")}
	secondary := &fakeSource{name: "secondary", batches: [][]entities.Transfer{
		{tf("x", 700)},
	}}
	p := NewPoller([]Source{primary, secondary}, logger.NewNop(), nil)
	p.Restore(600)

	got := p.PollNew(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestPollNew_AllSourcesFailingSkipsCycle(t *testing.T) {
	primary := &fakeSource{name: "primary", err: errors.New("timeout")}
	secondary := &fakeSource{name: "secondary", err: errors.New("connection refused")}
	p := NewPoller([]Source{primary, secondary}, logger.NewNop(), nil)
	p.Restore(100)

	got := p.PollNew(context.Background())
	assert.Empty(t, got)
	assert.Equal(t, int64(100), p.Cursor(), "cursor must not move on a failed cycle")
}

func TestPollNew_OrdersOldestFirst(t *testing.T) {
	src := &fakeSource{name: "primary", batches: [][]entities.Transfer{
		{tf("c", 900), tf("b", 800), tf("a", 700)},
	}}
	p := NewPoller([]Source{src}, logger.NewNop(), nil)
	p.Restore(650)

	got := p.PollNew(context.Background())
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRestore_ZeroCursorStaysUnprimed(t *testing.T) {
	src := &fakeSource{name: "primary", batches: [][]entities.Transfer{
		{tf("a", 100)},
	}}
	p := NewPoller([]Source{src}, logger.NewNop(), nil)
	p.Restore(0)

	got := p.PollNew(context.Background())
	assert.Empty(t, got, "fresh state must prime, not replay")
}
