package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vend-service/vend_service/internal/domain/entities"
)

// candidate is a pending order ranked by its distance to a transfer amount.
type candidate struct {
	Order *entities.Order
	Diff  decimal.Decimal
}

// matchTransfer pairs a normalized transfer amount against the pending
// orders. An order matches when |expected - amount| <= tolerance. With
// several orders in tolerance the smallest difference wins; equal
// differences fall back to the earliest CreatedAt, then to the customer
// id, so the result is deterministic regardless of the iteration order of
// the pending table. Expected amounts carry a per-order sub-cent offset
// precisely so such collisions stay rare.
//
// The returned candidates are the nearest orders by amount distance
// (limited to candidateLimit) for operator triage on unmatched transfers.
func matchTransfer(amount decimal.Decimal, pending []*entities.Order, tolerance decimal.Decimal, candidateLimit int) (*entities.Order, []candidate) {
	if len(pending) == 0 {
		return nil, nil
	}

	ranked := make([]candidate, 0, len(pending))
	for _, order := range pending {
		ranked = append(ranked, candidate{
			Order: order,
			Diff:  order.ExpectedAmount.Sub(amount).Abs(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].Diff.Cmp(ranked[j].Diff); cmp != 0 {
			return cmp < 0
		}
		if !ranked[i].Order.CreatedAt.Equal(ranked[j].Order.CreatedAt) {
			return ranked[i].Order.CreatedAt.Before(ranked[j].Order.CreatedAt)
		}
		return ranked[i].Order.CustomerID < ranked[j].Order.CustomerID
	})

	var best *entities.Order
	if ranked[0].Diff.Cmp(tolerance) <= 0 {
		best = ranked[0].Order
	}

	if candidateLimit > 0 && len(ranked) > candidateLimit {
		ranked = ranked[:candidateLimit]
	}
	return best, ranked
}
