// Package transfers turns per-source snapshots of recent ledger activity
// into a deduplicated, time-ordered stream of new transfers.
package transfers

import (
	"context"
	"sort"

	"github.com/vend-service/vend_service/internal/domain/entities"
	"github.com/vend-service/vend_service/pkg/logger"
	"github.com/vend-service/vend_service/pkg/metrics"
)

// Source is one ledger-explorer endpoint. FetchRecent returns a fresh
// most-recent-first snapshot; each call stands alone.
type Source interface {
	Name() string
	FetchRecent(ctx context.Context) ([]entities.Transfer, error)
}

// Poller fetches from an ordered list of sources with fallback and applies
// the cursor watermark. It is not safe for concurrent use; the
// reconciliation loop is its only caller.
type Poller struct {
	sources []Source
	cursor  int64
	primed  bool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewPoller creates a poller over the given sources, tried in order.
func NewPoller(sources []Source, log *logger.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		sources: sources,
		logger:  log,
		metrics: m,
	}
}

// Cursor returns the current watermark for persistence.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

// Restore sets the watermark from a persisted snapshot. A positive cursor
// means history before it was already evaluated in a previous run.
func (p *Poller) Restore(cursor int64) {
	p.cursor = cursor
	if cursor > 0 {
		p.primed = true
	}
}

// PollNew returns transfers at or after the cursor, oldest first. All
// sources failing yields an empty batch, never an error: a transient
// outage skips a cycle, it does not stop the engine.
//
// The very first successful fetch only primes the cursor to the newest
// transfer's position; nothing is emitted, so pre-existing history is not
// replayed as new payments. On primed polls the cursor does NOT move here:
// the caller commits it with Advance once a transfer's outcome is durably
// recorded, so a cycle abandoned mid-batch re-polls everything it had not
// yet handled. Transfers exactly at the cursor can reappear on later polls
// (pagination overlap); the idempotency ledger absorbs them.
func (p *Poller) PollNew(ctx context.Context) []entities.Transfer {
	batch, ok := p.fetchWithFallback(ctx)
	if !ok {
		return nil
	}

	if !p.primed {
		for _, t := range batch {
			if t.ObservedAt > p.cursor {
				p.cursor = t.ObservedAt
			}
		}
		p.primed = true
		p.logger.Info("Cursor initialized", "cursor", p.cursor, "skipped_history", len(batch))
		return nil
	}

	fresh := make([]entities.Transfer, 0, len(batch))
	for _, t := range batch {
		if t.ObservedAt < p.cursor {
			continue
		}
		fresh = append(fresh, t)
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].ObservedAt < fresh[j].ObservedAt
	})
	return fresh
}

// Advance commits the watermark after a transfer has been handled to
// completion. Backward moves are ignored; the cursor only moves forward.
func (p *Poller) Advance(cursor int64) {
	if cursor > p.cursor {
		p.cursor = cursor
	}
}

// fetchWithFallback tries each source in order and returns the first
// successful snapshot.
func (p *Poller) fetchWithFallback(ctx context.Context) ([]entities.Transfer, bool) {
	for _, source := range p.sources {
		batch, err := source.FetchRecent(ctx)
		if err != nil {
			p.logger.Warn("Explorer fetch failed, trying next source",
				"source", source.Name(), "error", err)
			if p.metrics != nil {
				p.metrics.FetchFailures.WithLabelValues(source.Name()).Inc()
			}
			continue
		}
		return batch, true
	}

	p.logger.Warn("All explorer sources failed, skipping cycle")
	return nil, false
}
