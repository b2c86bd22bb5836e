package events

import "time"

// Trade event types carried on the trade topic.
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// TradeExecutedPayload is published by workers after each trade attempt and
// consumed by the manager to keep task statistics current.
type TradeExecutedPayload struct {
	TaskID        string    `json:"taskId"`
	TradeType     string    `json:"tradeType"`
	Amount        float64   `json:"amount"`
	TxHash        string    `json:"txHash,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}
