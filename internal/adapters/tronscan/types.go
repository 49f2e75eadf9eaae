package tronscan

import "encoding/json"

// trc20TransferList is the Tronscan envelope for TRC-20 transfers. The
// array lives under "token_transfers", unlike TronGrid's "data".
type trc20TransferList struct {
	Total          int64           `json:"total"`
	TokenTransfers []trc20Transfer `json:"token_transfers"`
}

type trc20Transfer struct {
	TransactionID   string      `json:"transaction_id"`
	BlockTimestamp  int64       `json:"block_ts"`
	FromAddress     string      `json:"from_address"`
	ToAddress       string      `json:"to_address"`
	ContractAddress string      `json:"contract_address"`
	Quant           json.Number `json:"quant"`
	TokenInfo       tokenInfo   `json:"tokenInfo"`
	Confirmed       bool        `json:"confirmed"`
}

type tokenInfo struct {
	TokenDecimal int32  `json:"tokenDecimal"`
	TokenAbbr    string `json:"tokenAbbr"`
}

// transactionList is the Tronscan envelope for plain transactions, used in
// native-TRX mode. Here the array sits under "data".
type transactionList struct {
	Total int64         `json:"total"`
	Data  []transaction `json:"data"`
}

type transaction struct {
	Hash         string      `json:"hash"`
	Timestamp    int64       `json:"timestamp"`
	OwnerAddress string      `json:"ownerAddress"`
	ToAddress    string      `json:"toAddress"`
	ContractType int         `json:"contractType"`
	Amount       json.Number `json:"amount"`
	Confirmed    bool        `json:"confirmed"`
}

// transferContractType is Tronscan's type tag for native coin transfers.
const transferContractType = 1
