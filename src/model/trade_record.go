package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TradeStatusPending   = "pending"
	TradeStatusFilled    = "filled"
	TradeStatusCancelled = "cancelled"
	TradeStatusFailed    = "failed"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const (
	OrderKindMarket = "market"
	OrderKindLimit  = "limit"
)

// Origin tells who submitted the order behind a trade record.
const (
	TradeOriginManual   = "manual"
	TradeOriginAutoExit = "auto_exit"
)

// TradeRecord is the local, append-only log entry for an order the system
// submitted or observed at the broker.
type TradeRecord struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:64;not null;index:idx_trade_user_symbol" json:"user_id"`
	Symbol        string    `gorm:"size:20;not null;index:idx_trade_user_symbol" json:"symbol"`
	Side          string    `gorm:"size:10;not null" json:"side"` // buy | sell
	OrderKind     string    `gorm:"size:10;not null;default:market" json:"order_kind"`
	Quantity      float64   `gorm:"not null" json:"quantity"`
	EntryPrice    *float64  `json:"entry_price"`
	CurrentPrice  *float64  `json:"current_price"`
	ProfitLossPct *float64  `gorm:"column:profit_loss_percentage" json:"profit_loss_percentage"`
	Status        string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	BrokerOrderID *string   `gorm:"size:64;index" json:"alpaca_order_id"`
	Origin        string    `gorm:"size:20;not null;default:manual" json:"origin"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// BeforeCreate assigns the internal id and normalises the symbol.
func (t *TradeRecord) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	return nil
}

// IsTerminalStatus reports whether status can no longer change.
func IsTerminalStatus(status string) bool {
	switch status {
	case TradeStatusFilled, TradeStatusCancelled, TradeStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from one status to another.
// Only pending records move, and only forward.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from == TradeStatusPending && IsTerminalStatus(to)
}
