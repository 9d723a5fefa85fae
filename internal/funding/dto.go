package funding

import "github.com/shopspring/decimal"

// DepositRequest captures user-provided data to fund a wallet with fiat.
type DepositRequest struct {
	Addr       string          `json:"addr"`
	InrAmount  decimal.Decimal `json:"inrAmount"`
	ClientTxID string          `json:"clientTxId"`
}

// WithdrawRequest captures a fiat payout request.
type WithdrawRequest struct {
	Addr       string          `json:"addr"`
	InrAmount  decimal.Decimal `json:"inrAmount"`
	ClientTxID string          `json:"clientTxId"`
}
