package trongrid

import "encoding/json"

// trc20Response is the TronGrid envelope: the transfer array lives under
// "data" with a "success" flag, unlike Tronscan's "token_transfers".
type trc20Response struct {
	Data    []trc20Transfer `json:"data"`
	Success bool            `json:"success"`
}

type trc20Transfer struct {
	TransactionID  string      `json:"transaction_id"`
	BlockTimestamp int64       `json:"block_timestamp"`
	From           string      `json:"from"`
	To             string      `json:"to"`
	Type           string      `json:"type"`
	Value          json.Number `json:"value"`
	TokenInfo      tokenInfo   `json:"token_info"`
}

type tokenInfo struct {
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// transactionsResponse is the envelope for plain account transactions,
// used in native-TRX mode.
type transactionsResponse struct {
	Data    []transaction `json:"data"`
	Success bool          `json:"success"`
}

type transaction struct {
	TxID           string  `json:"txID"`
	BlockTimestamp int64   `json:"block_timestamp"`
	RawData        rawData `json:"raw_data"`
}

type rawData struct {
	Contract []contract `json:"contract"`
}

type contract struct {
	Type      string        `json:"type"`
	Parameter contractParam `json:"parameter"`
}

type contractParam struct {
	Value contractValue `json:"value"`
}

type contractValue struct {
	Amount       json.Number `json:"amount"`
	OwnerAddress string      `json:"owner_address"`
	ToAddress    string      `json:"to_address"`
}
