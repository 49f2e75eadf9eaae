// Package reconciliation owns the poll -> normalize -> filter -> dedupe ->
// match -> persist -> notify cycle and the expiry sweep. The service is the
// single writer of engine state; the chat front-end only reaches the order
// table through the orders service, never through this loop's internals.
package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vend-service/vend_service/internal/domain/entities"
	"github.com/vend-service/vend_service/internal/domain/services/amount"
	"github.com/vend-service/vend_service/internal/infrastructure/repositories"
	"github.com/vend-service/vend_service/pkg/logger"
	"github.com/vend-service/vend_service/pkg/metrics"
)

const notifyTimeout = 10 * time.Second

// OrderStore is the mutation surface of the order table used by the loop.
type OrderStore interface {
	Pending() []*entities.Order
	PendingCount() int
	MarkMatched(customerID string) (*entities.Order, error)
	ExpireOlderThan(now time.Time, timeout time.Duration) []*entities.Order
	SnapshotOrders() map[string]*entities.Order
	OffsetSeq() int64
	Restore(snapshot map[string]*entities.Order, offsetSeq int64)
}

// TransferFeed is the cursor-bounded stream of new transfers. Advance
// commits the watermark; PollNew never moves it on its own.
type TransferFeed interface {
	PollNew(ctx context.Context) []entities.Transfer
	Advance(cursor int64)
	Cursor() int64
	Restore(cursor int64)
}

// Notifier delivers outbound messages. Failures are logged and swallowed.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendOperator(ctx context.Context, text string) error
}

// Config holds reconciliation service configuration.
type Config struct {
	ReceivingAddress string
	TokenContract    string // empty means native-coin mode
	Tolerance        decimal.Decimal
	OrderTimeout     time.Duration
	ProcessedCap     int
	CandidateLimit   int
}

// Service runs the reconciliation cycle against the order store.
type Service struct {
	orders    OrderStore
	feed      TransferFeed
	notifier  Notifier
	snapshots *repositories.SnapshotRepository
	processed *entities.ProcessedSet

	logger  *logger.Logger
	metrics *metrics.Metrics
	config  Config

	// cycleMu keeps engine state single-writer: the scheduler's ticker
	// and the manual HTTP trigger may both call RunCycle.
	cycleMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// Stats are running totals since process start, reported in the daily
// operator summary.
type Stats struct {
	Matched   int
	Unmatched int
	Expired   int
}

// NewService creates a reconciliation service.
func NewService(
	orders OrderStore,
	feed TransferFeed,
	notifier Notifier,
	snapshots *repositories.SnapshotRepository,
	log *logger.Logger,
	m *metrics.Metrics,
	config Config,
) *Service {
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = 3
	}
	if config.OrderTimeout <= 0 {
		config.OrderTimeout = 15 * time.Minute
	}
	return &Service{
		orders:    orders,
		feed:      feed,
		notifier:  notifier,
		snapshots: snapshots,
		processed: entities.NewProcessedSet(config.ProcessedCap),
		logger:    log,
		metrics:   m,
		config:    config,
	}
}

// LoadState restores orders, the idempotency ledger and the cursor from the
// persisted snapshot. Called once before the loop starts.
func (s *Service) LoadState() error {
	state, err := s.snapshots.Load()
	if err != nil {
		return fmt.Errorf("failed to load engine state: %w", err)
	}

	s.orders.Restore(state.Orders, state.OffsetSeq)
	s.processed.Restore(state.Processed)
	s.feed.Restore(state.LastSeenCursor)

	s.logger.Info("Engine state loaded",
		"pending_orders", s.orders.PendingCount(),
		"processed_transfers", s.processed.Len(),
		"cursor", state.LastSeenCursor)
	return nil
}

// RunCycle executes one full reconciliation cycle. Errors inside the cycle
// are logged and abandon the remainder of the cycle; they never propagate,
// so one bad transfer or failed write cannot stop future cycles.
func (s *Service) RunCycle(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, span := otel.Tracer("reconciliation.service").Start(ctx, "RunCycle")
	defer span.End()

	transfers := s.feed.PollNew(ctx)
	span.SetAttributes(attribute.Int("transfers", len(transfers)))

	// The cursor is committed per handled transfer, so an abandoned cycle
	// leaves everything unprocessed ahead of the watermark and re-polls it
	// next cycle; the processed set absorbs the replay.
	for _, transfer := range transfers {
		if !s.isRelevant(transfer) {
			s.feed.Advance(transfer.ObservedAt)
			continue
		}
		if s.processed.Seen(transfer.ID) {
			s.logger.Debug("Transfer already processed", "transfer_id", transfer.ID)
			s.feed.Advance(transfer.ObservedAt)
			continue
		}

		s.metrics.TransfersSeenTotal.Inc()

		if err := s.processTransfer(ctx, transfer); err != nil {
			s.logger.Error("Cycle abandoned", "transfer_id", transfer.ID, "error", err)
			s.metrics.CycleErrorsTotal.Inc()
			return
		}
		s.feed.Advance(transfer.ObservedAt)
	}

	// Writes the committed cursor; also captures priming on the first fetch.
	if err := s.persist(); err != nil {
		s.logger.Error("Failed to persist cursor", "error", err)
		s.metrics.CycleErrorsTotal.Inc()
		return
	}

	s.sweep(ctx)

	s.metrics.CyclesTotal.Inc()
	s.metrics.PendingOrders.Set(float64(s.orders.PendingCount()))
}

// isRelevant filters out transfers that are not payment attempts at all:
// wrong receiving address or wrong token contract. These are never recorded
// in the idempotency ledger.
func (s *Service) isRelevant(transfer entities.Transfer) bool {
	if transfer.To != s.config.ReceivingAddress {
		return false
	}
	if s.config.TokenContract != "" {
		return transfer.Contract == s.config.TokenContract
	}
	return transfer.Contract == ""
}

// processTransfer normalizes, matches and records a single transfer. Only
// persistence failures are returned; everything else degrades to an
// operator notification.
func (s *Service) processTransfer(ctx context.Context, transfer entities.Transfer) error {
	normalized, err := amount.Normalize(transfer.RawAmount, transfer.Decimals)
	if err != nil {
		// Record the id anyway so an unparsable record is not retried
		// on every future cycle.
		s.logger.Warn("Dropping transfer with unusable amount",
			"transfer_id", transfer.ID, "raw_amount", transfer.RawAmount, "error", err)
		s.processed.Record(entities.ProcessedRecord{
			TransferID: transfer.ID,
			Outcome:    entities.OutcomeUnusable,
		})
		return s.persist()
	}
	transfer.Amount = normalized

	best, candidates := matchTransfer(normalized, s.orders.Pending(), s.config.Tolerance, s.config.CandidateLimit)
	if best == nil {
		return s.recordUnmatched(ctx, transfer, candidates)
	}
	return s.recordMatched(ctx, transfer, best.CustomerID)
}

func (s *Service) recordMatched(ctx context.Context, transfer entities.Transfer, customerID string) error {
	order, err := s.orders.MarkMatched(customerID)
	if err != nil {
		// The order vanished between the pending snapshot and now
		// (replaced or expired). Treat the transfer as unmatched.
		s.logger.Warn("Matched order no longer pending",
			"customer_id", customerID, "transfer_id", transfer.ID, "error", err)
		return s.recordUnmatched(ctx, transfer, nil)
	}

	s.processed.Record(entities.ProcessedRecord{
		TransferID: transfer.ID,
		Outcome:    entities.OutcomeMatched,
		CustomerID: customerID,
	})

	// Persist before notifying: a crash after the write must not replay
	// the match, a crash before it may at worst repeat a notification.
	if err := s.persist(); err != nil {
		return err
	}

	s.metrics.MatchedTotal.Inc()
	s.bumpStats(func(st *Stats) { st.Matched++ })

	s.logger.Info("Payment matched",
		"order_id", order.ID,
		"customer_id", customerID,
		"transfer_id", transfer.ID,
		"amount", transfer.Amount.String(),
		"quantity", order.Quantity)

	s.notify(ctx, order.RecipientChat, fmt.Sprintf(
		"✅ Payment confirmed!\n- Amount: %s\n- Quantity: %d\nYour order is being processed.",
		transfer.Amount.String(), order.Quantity))
	s.notifyOperator(ctx, fmt.Sprintf(
		"Matched transfer %s (%s) to customer %s, order %s, qty %d",
		transfer.ID, transfer.Amount.String(), customerID, order.ID, order.Quantity))

	return nil
}

func (s *Service) recordUnmatched(ctx context.Context, transfer entities.Transfer, candidates []candidate) error {
	s.processed.Record(entities.ProcessedRecord{
		TransferID: transfer.ID,
		Outcome:    entities.OutcomeUnmatched,
	})
	if err := s.persist(); err != nil {
		return err
	}

	s.metrics.UnmatchedTotal.Inc()
	s.bumpStats(func(st *Stats) { st.Unmatched++ })

	s.logger.Warn("Unmatched transfer",
		"transfer_id", transfer.ID,
		"amount", transfer.Amount.String(),
		"from", transfer.From)

	msg := fmt.Sprintf("⚠️ Unmatched transfer %s for %s from %s.",
		transfer.ID, transfer.Amount.String(), transfer.From)
	for _, c := range candidates {
		msg += fmt.Sprintf("\n  candidate: customer %s expected %s (diff %s)",
			c.Order.CustomerID, c.Order.ExpectedAmount.String(), c.Diff.String())
	}
	s.notifyOperator(ctx, msg)

	return nil
}

// sweep expires stale pending orders. Orders leave the store atomically
// with being collected, so a crash between persist and notify cannot make
// a later sweep expire them twice.
func (s *Service) sweep(ctx context.Context) {
	expired := s.orders.ExpireOlderThan(time.Now().UTC(), s.config.OrderTimeout)
	if len(expired) == 0 {
		return
	}

	if err := s.persist(); err != nil {
		s.logger.Error("Failed to persist after sweep", "error", err)
		return
	}

	for _, order := range expired {
		s.metrics.ExpiredTotal.Inc()
		s.bumpStats(func(st *Stats) { st.Expired++ })

		s.logger.Info("Order expired",
			"order_id", order.ID,
			"customer_id", order.CustomerID,
			"created_at", order.CreatedAt.Format(time.RFC3339))

		s.notify(ctx, order.RecipientChat, fmt.Sprintf(
			"⏰ Your order for %d units expired before payment arrived. Please order again.",
			order.Quantity))
		s.notifyOperator(ctx, fmt.Sprintf(
			"Expired order %s for customer %s (expected %s)",
			order.ID, order.CustomerID, order.ExpectedAmount.String()))
	}
}

// persist writes the full engine state as one atomic snapshot.
func (s *Service) persist() error {
	state := &repositories.EngineState{
		Orders:         s.orders.SnapshotOrders(),
		Processed:      s.processed.Snapshot(),
		LastSeenCursor: s.feed.Cursor(),
		OffsetSeq:      s.orders.OffsetSeq(),
	}
	if err := s.snapshots.Save(state); err != nil {
		return fmt.Errorf("failed to persist engine state: %w", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, chatID int64, text string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, chatID, text); err != nil {
		s.logger.Warn("Customer notification failed", "chat_id", chatID, "error", err)
	}
}

func (s *Service) notifyOperator(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.SendOperator(ctx, text); err != nil {
		s.logger.Warn("Operator notification failed", "error", err)
	}
}

func (s *Service) bumpStats(fn func(*Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

// StatsSnapshot returns the running totals since process start.
func (s *Service) StatsSnapshot() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}
