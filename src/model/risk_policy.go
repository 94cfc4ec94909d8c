package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RiskProfileConservative = "conservative"
	RiskProfileModerate     = "moderate"
	RiskProfileAggressive   = "aggressive"
)

// RiskPolicy is the current exit configuration of a user. There is a single
// row per user, replaced wholesale on every save.
type RiskPolicy struct {
	UserID                  string          `gorm:"primaryKey;size:64" json:"user_id"`
	RiskProfile             string          `gorm:"size:20;not null;default:moderate" json:"risk_profile"`
	ProfitTargetPct         decimal.Decimal `gorm:"column:profit_target_percentage;type:numeric(10,4);not null" json:"profit_target_percentage"`
	StopLossPct             decimal.Decimal `gorm:"column:stop_loss_percentage;type:numeric(10,4)" json:"stop_loss_percentage"`
	StopLossEnabled         bool            `gorm:"column:stop_loss_enabled;not null" json:"stop_loss_enabled"`
	AutomatedTradingEnabled bool            `gorm:"column:automated_trading_enabled;not null;index" json:"automated_trading_enabled"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

func (RiskPolicy) TableName() string {
	return "risk_policies"
}

// DefaultRiskPolicy is used for users that never saved their settings.
func DefaultRiskPolicy(userID string) *RiskPolicy {
	return &RiskPolicy{
		UserID:                  userID,
		RiskProfile:             RiskProfileModerate,
		ProfitTargetPct:         decimal.NewFromInt(8),
		StopLossPct:             decimal.NewFromInt(2),
		StopLossEnabled:         false,
		AutomatedTradingEnabled: false,
	}
}
