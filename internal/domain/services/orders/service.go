// Package orders owns the table of outstanding orders. It is the only
// mutation path for order state: the chat front-end creates orders through
// it and the reconciliation loop matches and expires them through it.
package orders

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vend-service/vend_service/internal/domain/entities"
	"github.com/vend-service/vend_service/pkg/logger"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive multiple of the unit size")
	ErrNoPendingOrder  = errors.New("no pending order for customer")
)

// offsetSlots is the number of distinct sub-cent offsets cycled through so
// that orders created back-to-back occupy distinct tolerance windows.
const offsetSlots = 9

// Config holds pricing configuration for the order table.
type Config struct {
	UnitSize   int64           // quantity granularity, e.g. 100
	UnitPrice  decimal.Decimal // price per UnitSize units
	OffsetStep decimal.Decimal // sub-cent separator, e.g. 0.001
}

// Service is a mutex-guarded order table. Exactly one pending order may
// exist per customer; creating another replaces it.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	pending   map[string]*entities.Order
	offsetSeq int64
	logger    *logger.Logger
}

// NewService creates an empty order table.
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.UnitSize <= 0 {
		cfg.UnitSize = 100
	}
	if cfg.OffsetStep.IsZero() {
		cfg.OffsetStep = decimal.New(1, -3)
	}
	return &Service{
		cfg:     cfg,
		pending: make(map[string]*entities.Order),
		logger:  log,
	}
}

// CreateOrUpdate creates a pending order for the customer, replacing any
// prior pending one. The expected amount is the list price plus a cycling
// sub-cent offset so concurrent orders remain distinguishable by amount.
func (s *Service) CreateOrUpdate(customerID string, quantity int64, recipientChat int64) (*entities.Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if quantity <= 0 || quantity%s.cfg.UnitSize != 0 {
		return nil, fmt.Errorf("%w: got %d, unit %d", ErrInvalidQuantity, quantity, s.cfg.UnitSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := decimal.NewFromInt(quantity / s.cfg.UnitSize)
	base := s.cfg.UnitPrice.Mul(blocks).Round(2)

	s.offsetSeq++
	slot := decimal.NewFromInt(s.offsetSeq%offsetSlots + 1)
	expected := base.Add(s.cfg.OffsetStep.Mul(slot)).Round(3)

	order := entities.NewOrder(customerID, quantity, expected, recipientChat)

	if prior, ok := s.pending[customerID]; ok {
		s.logger.Info("Replacing pending order",
			"customer_id", customerID,
			"prior_order_id", prior.ID,
			"order_id", order.ID)
	}
	s.pending[customerID] = order

	s.logger.Info("Order created",
		"order_id", order.ID,
		"customer_id", customerID,
		"quantity", quantity,
		"expected_amount", expected.String())

	return order.Clone(), nil
}

// Get returns a copy of the customer's pending order.
func (s *Service) Get(customerID string) (*entities.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.pending[customerID]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// Pending returns a snapshot copy of all pending orders for the matcher.
func (s *Service) Pending() []*entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entities.Order, 0, len(s.pending))
	for _, order := range s.pending {
		out = append(out, order.Clone())
	}
	return out
}

// PendingCount returns the number of orders awaiting payment.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// MarkMatched transitions the customer's pending order to matched and
// removes it from the active table. Terminal states are immutable, so a
// second call for the same customer fails with ErrNoPendingOrder.
func (s *Service) MarkMatched(customerID string) (*entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.pending[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingOrder, customerID)
	}
	if err := order.Status.ValidateTransition(entities.OrderStatusMatched); err != nil {
		return nil, err
	}

	order.Status = entities.OrderStatusMatched
	delete(s.pending, customerID)

	return order.Clone(), nil
}

// ExpireOlderThan atomically removes every pending order older than the
// timeout and returns the expired copies. Removal happens before any
// notification is attempted, so a crash mid-notification cannot cause a
// second sweep to expire the same order again.
func (s *Service) ExpireOlderThan(now time.Time, timeout time.Duration) []*entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*entities.Order
	for customerID, order := range s.pending {
		if !order.IsExpiredAt(now, timeout) {
			continue
		}
		order.Status = entities.OrderStatusExpired
		delete(s.pending, customerID)
		expired = append(expired, order.Clone())
	}
	return expired
}

// OffsetSeq returns the pricing offset sequence for persistence.
func (s *Service) OffsetSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetSeq
}

// SnapshotOrders returns a copy of the pending table for persistence.
func (s *Service) SnapshotOrders() map[string]*entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*entities.Order, len(s.pending))
	for customerID, order := range s.pending {
		out[customerID] = order.Clone()
	}
	return out
}

// Restore replaces the pending table from a persisted snapshot. Orders in
// terminal states are skipped; they were only persisted mid-notification.
// The offset sequence is restored too, so orders created after a restart
// keep landing in slots distinct from the restored ones.
func (s *Service) Restore(snapshot map[string]*entities.Order, offsetSeq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offsetSeq = offsetSeq
	s.pending = make(map[string]*entities.Order, len(snapshot))
	for customerID, order := range snapshot {
		if order == nil || order.Status != entities.OrderStatusPending {
			continue
		}
		s.pending[customerID] = order.Clone()
	}
}
