package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"papertrader/src/model"
)

type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
)

// Configuration ranges accepted for a policy, in percent.
var (
	MinProfitTarget = decimal.NewFromInt(1)
	MaxProfitTarget = decimal.NewFromInt(50)
	MinStopLoss     = decimal.RequireFromString("0.5")
	MaxStopLoss     = decimal.NewFromInt(20)
)

type Decision struct {
	Exit   bool
	Reason ExitReason
	PLPct  decimal.Decimal
}

// Evaluate applies the exit rule to a position P/L in percent:
// exit when automated and (pl >= target or (stop enabled and pl <= -stop)).
// The profit target is checked first.
func Evaluate(policy *model.RiskPolicy, plPct decimal.Decimal) Decision {
	d := Decision{PLPct: plPct}
	if policy == nil || !policy.AutomatedTradingEnabled {
		return d
	}

	if plPct.GreaterThanOrEqual(policy.ProfitTargetPct) {
		d.Exit, d.Reason = true, ExitProfitTarget
		return d
	}

	if policy.StopLossEnabled && plPct.LessThanOrEqual(policy.StopLossPct.Neg()) {
		d.Exit, d.Reason = true, ExitStopLoss
	}
	return d
}

// ValidatePolicy checks the ranges the settings form enforces. The stop
// loss range is only checked when the stop is enabled.
func ValidatePolicy(p *model.RiskPolicy) error {
	switch p.RiskProfile {
	case model.RiskProfileConservative, model.RiskProfileModerate, model.RiskProfileAggressive:
	default:
		return fmt.Errorf("risk_profile must be conservative, moderate or aggressive, got %q", p.RiskProfile)
	}

	if p.ProfitTargetPct.LessThan(MinProfitTarget) || p.ProfitTargetPct.GreaterThan(MaxProfitTarget) {
		return fmt.Errorf("profit_target_percentage must be between %s and %s", MinProfitTarget, MaxProfitTarget)
	}

	if p.StopLossEnabled && (p.StopLossPct.LessThan(MinStopLoss) || p.StopLossPct.GreaterThan(MaxStopLoss)) {
		return fmt.Errorf("stop_loss_percentage must be between %s and %s", MinStopLoss, MaxStopLoss)
	}

	return nil
}
