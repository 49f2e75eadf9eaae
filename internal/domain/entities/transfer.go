package entities

import "github.com/shopspring/decimal"

// Transfer is an observed on-ledger token movement. It is an external,
// read-only fact; the engine never mutates one after ingestion.
type Transfer struct {
	// ID is the ledger-native transaction id. Source APIs expose it under
	// different field names; adapters map them all to this one concept.
	ID string `json:"id"`

	From     string `json:"from"`
	To       string `json:"to"`
	Contract string `json:"contract"` // empty for native-coin transfers

	// RawAmount keeps the source encoding untouched: a plain decimal
	// string, an unscaled integer string, or a 0x-prefixed hex string.
	RawAmount string `json:"raw_amount"`
	Decimals  int32  `json:"decimals"`

	// ObservedAt is the source-reported block timestamp in milliseconds.
	ObservedAt int64 `json:"observed_at"`

	// Amount is the canonical value filled in by the normalizer.
	Amount decimal.Decimal `json:"amount"`

	Source string `json:"source"`
}
