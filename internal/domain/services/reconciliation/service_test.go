package reconciliation

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vend-service/vend_service/internal/domain/entities"
	"github.com/vend-service/vend_service/internal/domain/services/orders"
	"github.com/vend-service/vend_service/internal/domain/services/transfers"
	"github.com/vend-service/vend_service/internal/infrastructure/repositories"
	"github.com/vend-service/vend_service/pkg/logger"
	"github.com/vend-service/vend_service/pkg/metrics"
)

const testAddress = "TTestReceivingAddress"

type fakeFeed struct {
	batches [][]entities.Transfer
	cursor  int64
}

func (f *fakeFeed) PollNew(ctx context.Context) []entities.Transfer {
	if len(f.batches) == 0 {
		return nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch
}

func (f *fakeFeed) Advance(cursor int64) {
	if cursor > f.cursor {
		f.cursor = cursor
	}
}

func (f *fakeFeed) Cursor() int64        { return f.cursor }
func (f *fakeFeed) Restore(cursor int64) { f.cursor = cursor }

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	customer []sentMessage
	operator []string
}

func (f *fakeNotifier) Send(ctx context.Context, chatID int64, text string) error {
	f.customer = append(f.customer, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeNotifier) SendOperator(ctx context.Context, text string) error {
	f.operator = append(f.operator, text)
	return nil
}

type fixture struct {
	service  *Service
	orders   *orders.Service
	feed     *fakeFeed
	notifier *fakeNotifier
	repo     *repositories.SnapshotRepository
	path     string
}

func newFixture(t *testing.T, feed *fakeFeed) *fixture {
	t.Helper()
	return newFixtureAt(t, feed, filepath.Join(t.TempDir(), "state.json"))
}

func newFixtureAt(t *testing.T, feed *fakeFeed, path string) *fixture {
	t.Helper()

	log := logger.NewNop()
	repo, err := repositories.NewSnapshotRepository(path)
	require.NoError(t, err)

	orderSvc := orders.NewService(orders.Config{
		UnitSize:   100,
		UnitPrice:  decimal.RequireFromString("3.61"),
		OffsetStep: decimal.RequireFromString("0.001"),
	}, log)

	notifier := &fakeNotifier{}
	svc := NewService(orderSvc, feed, notifier, repo, log, metrics.New(prometheus.NewRegistry()), Config{
		ReceivingAddress: testAddress,
		Tolerance:        decimal.RequireFromString("0.01"),
		OrderTimeout:     15 * time.Minute,
		ProcessedCap:     16,
		CandidateLimit:   3,
	})

	return &fixture{
		service:  svc,
		orders:   orderSvc,
		feed:     feed,
		notifier: notifier,
		repo:     repo,
		path:     path,
	}
}

func incoming(id, rawAmount string, observedAt int64) entities.Transfer {
	return entities.Transfer{
		ID:         id,
		From:       "TSenderAddress",
		To:         testAddress,
		RawAmount:  rawAmount,
		Decimals:   6,
		ObservedAt: observedAt,
		Source:     "tronscan",
	}
}

func TestService_MatchesTransferToPendingOrder(t *testing.T) {
	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "18052000", 1000)},
	}}
	fx := newFixture(t, feed)

	// 500 units at 3.61 per 100 plus the first offset slot: 18.052.
	order, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)
	require.True(t, order.ExpectedAmount.Equal(decimal.RequireFromString("18.052")))

	fx.service.RunCycle(context.Background())

	assert.Equal(t, 0, fx.orders.PendingCount())
	require.Len(t, fx.notifier.customer, 1)
	assert.Equal(t, int64(42), fx.notifier.customer[0].ChatID)
	assert.Contains(t, fx.notifier.customer[0].Text, "Payment confirmed")
	require.NotEmpty(t, fx.notifier.operator)
	assert.Contains(t, fx.notifier.operator[0], "cust-1")

	state, err := fx.repo.Load()
	require.NoError(t, err)
	require.Len(t, state.Processed, 1)
	assert.Equal(t, "tx-1", state.Processed[0].TransferID)
	assert.Equal(t, entities.OutcomeMatched, state.Processed[0].Outcome)
	assert.Equal(t, "cust-1", state.Processed[0].CustomerID)
	assert.Equal(t, int64(1000), state.LastSeenCursor)

	stats := fx.service.StatsSnapshot()
	assert.Equal(t, Stats{Matched: 1}, stats)
}

func TestService_MatchWithinToleranceNotExact(t *testing.T) {
	// 18.053 against an expected 18.052 is inside the 0.01 tolerance.
	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "18053000", 1000)},
	}}
	fx := newFixture(t, feed)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	fx.service.RunCycle(context.Background())

	assert.Equal(t, 0, fx.orders.PendingCount())
	assert.Len(t, fx.notifier.customer, 1)
}

func TestService_WrongAddressIsFilteredWithoutRecord(t *testing.T) {
	stray := entities.Transfer{
		ID:         "tx-stray",
		From:       "TSenderAddress",
		To:         "TSomeOtherAddress",
		RawAmount:  "18052000",
		Decimals:   6,
		ObservedAt: 1000,
	}
	feed := &fakeFeed{batches: [][]entities.Transfer{{stray}}}
	fx := newFixture(t, feed)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	fx.service.RunCycle(context.Background())

	// Not a payment attempt: order untouched, nothing recorded.
	assert.Equal(t, 1, fx.orders.PendingCount())
	assert.Empty(t, fx.notifier.customer)

	state, err := fx.repo.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Processed)
}

func TestService_DuplicateTransferProcessedOnce(t *testing.T) {
	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "18052000", 1000)},
		{incoming("tx-1", "18052000", 1000)},
	}}
	fx := newFixture(t, feed)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	fx.service.RunCycle(context.Background())
	fx.service.RunCycle(context.Background())

	assert.Len(t, fx.notifier.customer, 1)
	assert.Equal(t, Stats{Matched: 1}, fx.service.StatsSnapshot())
}

func TestService_IdempotencySurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "18052000", 1000)},
	}}
	fx := newFixtureAt(t, feed, path)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)
	fx.service.RunCycle(context.Background())
	require.Len(t, fx.notifier.customer, 1)

	// Restart: fresh service over the same snapshot, explorer replays the
	// same transfer at the cursor.
	replay := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "18052000", 1000)},
	}}
	restarted := newFixtureAt(t, replay, path)
	require.NoError(t, restarted.service.LoadState())
	assert.Equal(t, int64(1000), replay.Cursor())

	restarted.service.RunCycle(context.Background())

	assert.Empty(t, restarted.notifier.customer)
	assert.Equal(t, Stats{}, restarted.service.StatsSnapshot())
}

func TestService_UnusableAmountRecordedOnce(t *testing.T) {
	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-bad", "garbage", 1000)},
		{incoming("tx-bad", "garbage", 1000)},
	}}
	fx := newFixture(t, feed)

	fx.service.RunCycle(context.Background())
	fx.service.RunCycle(context.Background())

	state, err := fx.repo.Load()
	require.NoError(t, err)
	require.Len(t, state.Processed, 1)
	assert.Equal(t, entities.OutcomeUnusable, state.Processed[0].Outcome)
	assert.Empty(t, fx.notifier.customer)
}

func TestService_UnmatchedTransferNotifiesOperatorWithCandidates(t *testing.T) {
	feed := &fakeFeed{batches: [][]entities.Transfer{
		{incoming("tx-1", "25000000", 1000)},
	}}
	fx := newFixture(t, feed)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	fx.service.RunCycle(context.Background())

	// Order stays pending, operator gets the nearest candidates.
	assert.Equal(t, 1, fx.orders.PendingCount())
	assert.Empty(t, fx.notifier.customer)
	require.NotEmpty(t, fx.notifier.operator)
	assert.Contains(t, fx.notifier.operator[0], "Unmatched transfer tx-1")
	assert.Contains(t, fx.notifier.operator[0], "cust-1")

	state, err := fx.repo.Load()
	require.NoError(t, err)
	require.Len(t, state.Processed, 1)
	assert.Equal(t, entities.OutcomeUnmatched, state.Processed[0].Outcome)
}

func TestService_SweepExpiresStaleOrders(t *testing.T) {
	feed := &fakeFeed{}
	fx := newFixture(t, feed)

	_, err := fx.orders.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	// Backdate the order past the timeout.
	snapshot := fx.orders.SnapshotOrders()
	snapshot["cust-1"].CreatedAt = time.Now().UTC().Add(-time.Hour)
	fx.orders.Restore(snapshot, fx.orders.OffsetSeq())

	fx.service.RunCycle(context.Background())

	assert.Equal(t, 0, fx.orders.PendingCount())
	require.Len(t, fx.notifier.customer, 1)
	assert.Contains(t, fx.notifier.customer[0].Text, "expired")
	assert.Equal(t, Stats{Expired: 1}, fx.service.StatsSnapshot())

	// The expired order is gone from the persisted snapshot too.
	state, err := fx.repo.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Orders)
}

type staticSource struct {
	batch []entities.Transfer
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) FetchRecent(ctx context.Context) ([]entities.Transfer, error) {
	return s.batch, nil
}

func TestService_ConcurrentCyclesStaySingleWriter(t *testing.T) {
	// The ticker loop and the manual HTTP trigger can both invoke
	// RunCycle. Drive it concurrently through the real poller: the engine
	// must serialize the cycles and process the transfer exactly once.
	src := &staticSource{batch: []entities.Transfer{incoming("tx-1", "18052000", 1000)}}
	feed := transfers.NewPoller([]transfers.Source{src}, logger.NewNop(), nil)
	feed.Restore(500)

	log := logger.NewNop()
	repo, err := repositories.NewSnapshotRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	orderSvc := orders.NewService(orders.Config{
		UnitSize:   100,
		UnitPrice:  decimal.RequireFromString("3.61"),
		OffsetStep: decimal.RequireFromString("0.001"),
	}, log)
	notifier := &fakeNotifier{}
	svc := NewService(orderSvc, feed, notifier, repo, log, metrics.New(prometheus.NewRegistry()), Config{
		ReceivingAddress: testAddress,
		Tolerance:        decimal.RequireFromString("0.01"),
		OrderTimeout:     15 * time.Minute,
	})

	_, err = orderSvc.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RunCycle(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, notifier.customer, 1)
	assert.Equal(t, Stats{Matched: 1}, svc.StatsSnapshot())
	assert.Equal(t, int64(1000), feed.Cursor())
}

func TestService_TokenContractFilter(t *testing.T) {
	usdt := incoming("tx-usdt", "18052000", 1000)
	usdt.Contract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	other := incoming("tx-other", "18052000", 1001)
	other.Contract = "TOtherContractAddress"

	feed := &fakeFeed{batches: [][]entities.Transfer{{other, usdt}}}

	log := logger.NewNop()
	repo, err := repositories.NewSnapshotRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	orderSvc := orders.NewService(orders.Config{
		UnitSize:   100,
		UnitPrice:  decimal.RequireFromString("3.61"),
		OffsetStep: decimal.RequireFromString("0.001"),
	}, log)
	notifier := &fakeNotifier{}
	svc := NewService(orderSvc, feed, notifier, repo, log, metrics.New(prometheus.NewRegistry()), Config{
		ReceivingAddress: testAddress,
		TokenContract:    "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		Tolerance:        decimal.RequireFromString("0.01"),
		OrderTimeout:     15 * time.Minute,
	})

	_, err = orderSvc.CreateOrUpdate("cust-1", 500, 42)
	require.NoError(t, err)

	svc.RunCycle(context.Background())

	state, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, state.Processed, 1)
	assert.Equal(t, "tx-usdt", state.Processed[0].TransferID)
	require.Len(t, notifier.customer, 1)
	assert.True(t, strings.Contains(notifier.customer[0].Text, "Payment confirmed"))
}
