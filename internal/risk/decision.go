// Package risk holds the pure admission rules, sizing and PnL arithmetic of the bot.
package risk

import "fmt"

// Rule names the check that produced a decision.
type Rule string

const (
	RuleNone             Rule = ""
	RuleConfidence       Rule = "min_confidence"
	RuleMaxOpenPositions Rule = "max_open_positions"
	RuleDailyDrawdown    Rule = "max_daily_drawdown"
	RuleCooldown         Rule = "cooldown"
	RuleMissingLevels    Rule = "missing_levels"
	RuleInvalidStopLoss  Rule = "invalid_stop_loss"
	RuleRewardRisk       Rule = "min_reward_risk_ratio"
	RulePositionSize     Rule = "position_size_pct"
)

// Decision is the outcome of validating a signal. A rejected decision always names its Rule.
type Decision struct {
	Accepted bool
	Rule     Rule
	Reason   string
}

func accept(reason string) Decision {
	return Decision{Accepted: true, Reason: reason}
}

func reject(rule Rule, format string, args ...any) Decision {
	return Decision{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

func (d Decision) String() string {
	if d.Accepted {
		return "accepted: " + d.Reason
	}
	return fmt.Sprintf("rejected (%s): %s", d.Rule, d.Reason)
}
