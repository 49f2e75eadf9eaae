package entities

// ProcessedOutcome records what happened to a transfer the first time the
// engine evaluated it.
type ProcessedOutcome string

const (
	OutcomeMatched   ProcessedOutcome = "matched"
	OutcomeUnmatched ProcessedOutcome = "unmatched"
	// OutcomeUnusable marks a transfer whose amount could not be parsed;
	// recording it stops the loop from retrying a hopeless record forever.
	OutcomeUnusable ProcessedOutcome = "unusable"
)

// ProcessedRecord pairs a transfer id with its processing outcome.
type ProcessedRecord struct {
	TransferID string           `json:"transfer_id"`
	Outcome    ProcessedOutcome `json:"outcome"`
	CustomerID string           `json:"customer_id,omitempty"`
}

// ProcessedSet is a bounded, insertion-ordered set of transfer ids. Once an
// id is in the set it is never reprocessed; when the cap is exceeded the
// oldest entries are evicted. The cap only needs to cover the explorer page
// size times the cursor-replay overlap, not full history.
type ProcessedSet struct {
	cap     int
	order   []string
	records map[string]ProcessedRecord
}

// NewProcessedSet creates an empty set with the given capacity.
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity <= 0 {
		capacity = 512
	}
	return &ProcessedSet{
		cap:     capacity,
		records: make(map[string]ProcessedRecord, capacity),
	}
}

// Seen reports whether the transfer id has already been processed.
func (s *ProcessedSet) Seen(transferID string) bool {
	_, ok := s.records[transferID]
	return ok
}

// Record stores the outcome for a transfer id, evicting the oldest entry
// when the cap is exceeded. Re-recording an id refreshes the outcome but
// not its position.
func (s *ProcessedSet) Record(rec ProcessedRecord) {
	if rec.TransferID == "" {
		return
	}
	if _, ok := s.records[rec.TransferID]; ok {
		s.records[rec.TransferID] = rec
		return
	}

	s.order = append(s.order, rec.TransferID)
	s.records[rec.TransferID] = rec

	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
}

// Len returns the number of retained entries.
func (s *ProcessedSet) Len() int {
	return len(s.order)
}

// Snapshot returns the retained records oldest-first, for persistence.
func (s *ProcessedSet) Snapshot() []ProcessedRecord {
	out := make([]ProcessedRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Restore replaces the set contents from a persisted snapshot.
func (s *ProcessedSet) Restore(records []ProcessedRecord) {
	s.order = s.order[:0]
	s.records = make(map[string]ProcessedRecord, s.cap)
	for _, rec := range records {
		s.Record(rec)
	}
}
