package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vend-service/vend_service/internal/domain/entities"
)

func pendingOrder(customerID, expected string, createdAt time.Time) *entities.Order {
	order := entities.NewOrder(customerID, 100, decimal.RequireFromString(expected), 1)
	order.CreatedAt = createdAt
	return order
}

func TestMatchTransfer_EmptyPending(t *testing.T) {
	best, candidates := matchTransfer(decimal.RequireFromString("18.05"), nil, decimal.RequireFromString("0.01"), 3)
	assert.Nil(t, best)
	assert.Nil(t, candidates)
}

func TestMatchTransfer_WithinTolerance(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("cust-1", "18.053", now),
	}

	best, _ := matchTransfer(decimal.RequireFromString("18.05"), pending, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "cust-1", best.CustomerID)
}

func TestMatchTransfer_OutsideTolerance(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("cust-1", "18.053", now),
	}

	best, candidates := matchTransfer(decimal.RequireFromString("18.10"), pending, decimal.RequireFromString("0.01"), 3)
	assert.Nil(t, best)
	require.Len(t, candidates, 1)
	assert.Equal(t, "cust-1", candidates[0].Order.CustomerID)
}

func TestMatchTransfer_ExactBoundaryMatches(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("cust-1", "18.06", now),
	}

	// |18.06 - 18.05| == tolerance exactly
	best, _ := matchTransfer(decimal.RequireFromString("18.05"), pending, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "cust-1", best.CustomerID)
}

func TestMatchTransfer_SmallestDifferenceWins(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("far", "18.059", now.Add(-time.Minute)),
		pendingOrder("near", "18.051", now),
	}

	best, _ := matchTransfer(decimal.RequireFromString("18.05"), pending, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "near", best.CustomerID)
}

func TestMatchTransfer_TieGoesToEarliestOrder(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("later", "18.052", now),
		pendingOrder("earlier", "18.048", now.Add(-2*time.Minute)),
	}

	// Both diffs are exactly 0.002.
	best, _ := matchTransfer(decimal.RequireFromString("18.05"), pending, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "earlier", best.CustomerID)
}

func TestMatchTransfer_FullTieIsDeterministic(t *testing.T) {
	now := time.Now().UTC()

	// Equal diffs and equal creation times: the customer id breaks the
	// tie, so the winner does not depend on pending-table iteration order.
	forward := []*entities.Order{
		pendingOrder("cust-b", "18.052", now),
		pendingOrder("cust-a", "18.048", now),
	}
	reversed := []*entities.Order{forward[1], forward[0]}

	best, _ := matchTransfer(decimal.RequireFromString("18.05"), forward, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "cust-a", best.CustomerID)

	best, _ = matchTransfer(decimal.RequireFromString("18.05"), reversed, decimal.RequireFromString("0.01"), 3)
	require.NotNil(t, best)
	assert.Equal(t, "cust-a", best.CustomerID)
}

func TestMatchTransfer_CandidateLimitTruncates(t *testing.T) {
	now := time.Now().UTC()
	pending := []*entities.Order{
		pendingOrder("a", "19.00", now),
		pendingOrder("b", "20.00", now),
		pendingOrder("c", "21.00", now),
		pendingOrder("d", "22.00", now),
	}

	best, candidates := matchTransfer(decimal.RequireFromString("18.05"), pending, decimal.RequireFromString("0.01"), 2)
	assert.Nil(t, best)
	require.Len(t, candidates, 2)
	assert.Equal(t, "a", candidates[0].Order.CustomerID)
	assert.Equal(t, "b", candidates[1].Order.CustomerID)
}
