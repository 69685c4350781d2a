// Package risk implements the stateful pre-trade and post-trade risk engine
// (spec §4.2), grounded on libs/risk/policy.go's Violation/Violations
// pattern and Enforcer shape.
package risk

import (
	"fmt"
	"strings"

	"paperbroker/internal/types"
)

// ViolationType is a machine-readable breach identifier.
type ViolationType string

const (
	DailyLossLimit       ViolationType = "daily_loss_limit"
	DailyTradeLimit      ViolationType = "daily_trade_limit"
	DailyVolumeLimit     ViolationType = "daily_volume_limit"
	TradeSizeLimit       ViolationType = "trade_size_limit"
	PositionSizeLimit    ViolationType = "position_size_limit"
	ConcentrationLimit   ViolationType = "concentration_limit"
	DeltaLimit           ViolationType = "delta_limit"
	GammaLimit           ViolationType = "gamma_limit"
	VegaLimit            ViolationType = "vega_limit"
	ContractLimit        ViolationType = "contract_limit"
	CircuitBreakerType   ViolationType = "circuit_breaker"
	ConsecutiveLossLimit ViolationType = "consecutive_loss_limit"
)

// Severity ranks how strictly a violation should be enforced.
type Severity string

const (
	Warning  Severity = "warning"
	ErrorSev Severity = "error"
	Critical Severity = "critical"
)

// Violation is a single breach of a risk limit.
type Violation struct {
	Type     ViolationType
	Severity Severity
	Message  string
	Limit    float64
	Observed float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("risk violation [%s/%s]: %s (limit=%.4f, observed=%.4f)",
		v.Type, v.Severity, v.Message, v.Limit, v.Observed)
}

// Violations is a slice of Violation that also satisfies the error
// interface, matching libs/risk/policy.go's Violations pattern.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, " | ")
}

// HasBlocking reports whether vs contains an error- or critical-severity
// violation, which blocks order placement (warnings never block).
func (vs Violations) HasBlocking() bool {
	for _, v := range vs {
		if v.Severity == ErrorSev || v.Severity == Critical {
			return true
		}
	}
	return false
}

// Limits is the configurable set of risk thresholds (spec §4.2).
type Limits struct {
	MaxDailyLoss                  float64 `json:"max_daily_loss" validate:"gt=0"`
	MaxDailyTrades                int64   `json:"max_daily_trades" validate:"gt=0"`
	MaxDailyVolume                float64 `json:"max_daily_volume" validate:"gt=0"`
	MaxTradeSize                  float64 `json:"max_trade_size" validate:"gt=0"`
	MaxPositionSize                float64 `json:"max_position_size" validate:"gt=0"`
	MaxPortfolioConcentration      float64 `json:"max_portfolio_concentration" validate:"gt=0,lte=1"`
	MaxOptionDelta                 float64 `json:"max_option_delta" validate:"gt=0"`
	MaxOptionGamma                 float64 `json:"max_option_gamma" validate:"gt=0"`
	MaxOptionVega                  float64 `json:"max_option_vega" validate:"gt=0"`
	MaxContractsPerTrade            int64   `json:"max_contracts_per_trade" validate:"gt=0"`
	CircuitBreakerLossPct           float64 `json:"circuit_breaker_loss_pct" validate:"gt=0,lte=1"`
	CircuitBreakerDurationMinutes   int64   `json:"circuit_breaker_duration_minutes" validate:"gt=0"`
	MaxConsecutiveLosses            int64   `json:"max_consecutive_losses" validate:"gt=0"`
}

// DefaultLimits mirrors the original engine's RiskLimits::default().
func DefaultLimits() Limits {
	return Limits{
		MaxDailyLoss:                  5000.0,
		MaxDailyTrades:                50,
		MaxDailyVolume:                50000.0,
		MaxTradeSize:                  10000.0,
		MaxPositionSize:               20000.0,
		MaxPortfolioConcentration:     0.25,
		MaxOptionDelta:                500.0,
		MaxOptionGamma:                100.0,
		MaxOptionVega:                 1000.0,
		MaxContractsPerTrade:          50,
		CircuitBreakerLossPct:         0.10,
		CircuitBreakerDurationMinutes: 60,
		MaxConsecutiveLosses:          5,
	}
}

type tradeRecord struct {
	timestamp int64
	pnl       float64
}

// Metrics is the engine's mutable per-account state (spec §4.2). It is not
// safe for concurrent use on its own — the Broker's single-writer lock
// (spec §5) serializes all access.
type Metrics struct {
	DailyTrades           int64
	DailyVolume           float64
	DailyPnL              float64
	DailyTradeIDs         []string
	CircuitBreakerActive  bool
	CircuitBreakerUntil   int64
	ConsecutiveLosses     int64
	LastUpdated           int64
	PortfolioGreeks       PortfolioGreeksView
	recentTrades          []tradeRecord
}

// PortfolioGreeksView is the subset of mtm.PortfolioGreeks the risk engine
// needs, kept decoupled from the mtm package to avoid an import cycle.
type PortfolioGreeksView struct {
	Delta float64
	Gamma float64
	Vega  float64
}

// Engine evaluates order requests and tracks post-trade risk state.
type Engine struct {
	Limits  Limits
	Metrics Metrics
}

// NewEngine returns an Engine with the given limits and zeroed metrics.
func NewEngine(limits Limits, now int64) *Engine {
	return &Engine{Limits: limits, Metrics: Metrics{LastUpdated: now}}
}

// OrderContext is the pre-trade information the engine checks an order
// request against.
type OrderContext struct {
	Request         types.OrderRequest
	EstimatedPrice  float64
	PortfolioEquity float64
	ExistingPosition *types.Position
	Greeks          PortfolioGreeksView
	Now             int64
}

// CheckOrderRisk evaluates req and returns the violations that apply. The
// caller rejects the order if Violations.HasBlocking() is true. Implements
// the exact check order of the original engine's check_order_risk: circuit
// breaker first (short-circuits everything else), then trade size, daily
// trade count, daily volume, position size + concentration, option Greek
// limits, daily loss, consecutive losses, and finally an 80%-of-limit
// trade-size warning appended on top of whatever else fired.
func (e *Engine) CheckOrderRisk(ctx OrderContext) Violations {
	if e.IsCircuitBreakerActive(ctx.Now) {
		return Violations{{
			Type:     CircuitBreakerType,
			Severity: Critical,
			Message:  "circuit breaker is active, trading is halted",
			Limit:    0,
			Observed: 0,
		}}
	}

	var vs Violations

	tradeValue := ctx.EstimatedPrice * float64(ctx.Request.Quantity)

	if tradeValue > e.Limits.MaxTradeSize {
		vs = append(vs, Violation{
			Type:     TradeSizeLimit,
			Severity: ErrorSev,
			Message:  "trade size exceeds maximum allowed",
			Limit:    e.Limits.MaxTradeSize,
			Observed: tradeValue,
		})
	}

	if e.Metrics.DailyTrades >= e.Limits.MaxDailyTrades {
		vs = append(vs, Violation{
			Type:     DailyTradeLimit,
			Severity: ErrorSev,
			Message:  "daily trade count limit reached",
			Limit:    float64(e.Limits.MaxDailyTrades),
			Observed: float64(e.Metrics.DailyTrades),
		})
	}

	projectedVolume := e.Metrics.DailyVolume + tradeValue
	if projectedVolume > e.Limits.MaxDailyVolume {
		vs = append(vs, Violation{
			Type:     DailyVolumeLimit,
			Severity: ErrorSev,
			Message:  "daily volume limit would be exceeded",
			Limit:    e.Limits.MaxDailyVolume,
			Observed: projectedVolume,
		})
	}

	if ctx.ExistingPosition != nil {
		positionValue := (float64(ctx.ExistingPosition.Quantity) + float64(signedQuantity(ctx.Request))) * ctx.EstimatedPrice
		if positionValue < 0 {
			positionValue = -positionValue
		}
		if positionValue > e.Limits.MaxPositionSize {
			vs = append(vs, Violation{
				Type:     PositionSizeLimit,
				Severity: ErrorSev,
				Message:  "position size exceeds maximum allowed",
				Limit:    e.Limits.MaxPositionSize,
				Observed: positionValue,
			})
		}
		if ctx.PortfolioEquity > 0 {
			concentration := positionValue / ctx.PortfolioEquity
			if concentration > e.Limits.MaxPortfolioConcentration {
				vs = append(vs, Violation{
					Type:     ConcentrationLimit,
					Severity: ErrorSev,
					Message:  "position concentration exceeds portfolio limit",
					Limit:    e.Limits.MaxPortfolioConcentration,
					Observed: concentration,
				})
			}
		}
	}

	if ctx.Request.InstrumentType == types.Option {
		if ctx.Request.Quantity > e.Limits.MaxContractsPerTrade {
			vs = append(vs, Violation{
				Type:     ContractLimit,
				Severity: ErrorSev,
				Message:  "contract quantity exceeds maximum per trade",
				Limit:    float64(e.Limits.MaxContractsPerTrade),
				Observed: float64(ctx.Request.Quantity),
			})
		}
		if absFloat(ctx.Greeks.Delta) > e.Limits.MaxOptionDelta {
			vs = append(vs, Violation{
				Type:     DeltaLimit,
				Severity: ErrorSev,
				Message:  "portfolio delta exceeds maximum allowed",
				Limit:    e.Limits.MaxOptionDelta,
				Observed: ctx.Greeks.Delta,
			})
		}
		if absFloat(ctx.Greeks.Gamma) > e.Limits.MaxOptionGamma {
			vs = append(vs, Violation{
				Type:     GammaLimit,
				Severity: ErrorSev,
				Message:  "portfolio gamma exceeds maximum allowed",
				Limit:    e.Limits.MaxOptionGamma,
				Observed: ctx.Greeks.Gamma,
			})
		}
		if absFloat(ctx.Greeks.Vega) > e.Limits.MaxOptionVega {
			vs = append(vs, Violation{
				Type:     VegaLimit,
				Severity: ErrorSev,
				Message:  "portfolio vega exceeds maximum allowed",
				Limit:    e.Limits.MaxOptionVega,
				Observed: ctx.Greeks.Vega,
			})
		}
	}

	if e.Metrics.DailyPnL < -e.Limits.MaxDailyLoss {
		vs = append(vs, Violation{
			Type:     DailyLossLimit,
			Severity: Critical,
			Message:  "daily loss limit reached",
			Limit:    e.Limits.MaxDailyLoss,
			Observed: -e.Metrics.DailyPnL,
		})
	}

	if e.Metrics.ConsecutiveLosses >= e.Limits.MaxConsecutiveLosses {
		vs = append(vs, Violation{
			Type:     ConsecutiveLossLimit,
			Severity: ErrorSev,
			Message:  "consecutive loss limit reached",
			Limit:    float64(e.Limits.MaxConsecutiveLosses),
			Observed: float64(e.Metrics.ConsecutiveLosses),
		})
	}

	if tradeValue > 0.8*e.Limits.MaxTradeSize {
		vs = append(vs, Violation{
			Type:     TradeSizeLimit,
			Severity: Warning,
			Message:  "trade size is approaching the maximum allowed",
			Limit:    e.Limits.MaxTradeSize,
			Observed: tradeValue,
		})
	}

	return vs
}

func signedQuantity(r types.OrderRequest) int64 {
	if r.Side == types.Sell {
		return -r.Quantity
	}
	return r.Quantity
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// UpdateAfterTrade records a completed trade's effect on the day's risk
// metrics. dayStartEquity is the Broker's equity at the start of the
// trading day; the circuit breaker's loss-percentage reference is always
// this injected value, never a hardcoded constant (spec §9 "Redesigned
// Behavior" #6 — the original engine divided by a literal 100000.0).
func (e *Engine) UpdateAfterTrade(trade types.Trade, currentPnL, dayStartEquity float64, now int64) {
	e.Metrics.DailyTrades++
	e.Metrics.DailyVolume += absFloat(trade.NetAmount)
	e.Metrics.DailyTradeIDs = append(e.Metrics.DailyTradeIDs, trade.ID)
	e.Metrics.recentTrades = append(e.Metrics.recentTrades, tradeRecord{timestamp: trade.Timestamp, pnl: currentPnL})

	e.updateConsecutiveLosses(now)

	if dayStartEquity > 0 && currentPnL/dayStartEquity < -e.Limits.CircuitBreakerLossPct {
		e.TriggerCircuitBreaker(now)
	}
}

// updateConsecutiveLosses recomputes the trailing-24h consecutive-loss
// streak from recentTrades, counting from the most recent trade backward
// until the first non-negative P&L.
func (e *Engine) updateConsecutiveLosses(now int64) {
	cutoff := now - 86400
	kept := e.Metrics.recentTrades[:0:0]
	for _, tr := range e.Metrics.recentTrades {
		if tr.timestamp > cutoff {
			kept = append(kept, tr)
		}
	}
	e.Metrics.recentTrades = kept

	var streak int64
	for i := len(kept) - 1; i >= 0; i-- {
		if kept[i].pnl < 0 {
			streak++
		} else {
			break
		}
	}
	e.Metrics.ConsecutiveLosses = streak
}

// UpdateDailyMetrics refreshes aggregate daily P&L and portfolio Greeks and
// rolls the day's counters over if the calendar date has changed since the
// last update.
func (e *Engine) UpdateDailyMetrics(dailyPnL float64, greeks PortfolioGreeksView, now int64) {
	e.Metrics.DailyPnL = dailyPnL
	e.Metrics.PortfolioGreeks = greeks

	if dayChanged(e.Metrics.LastUpdated, now) {
		e.ResetDailyCounters()
	}
	e.Metrics.LastUpdated = now
}

func dayChanged(last, now int64) bool {
	const day = 86400
	return last/day != now/day
}

// IsCircuitBreakerActive reports whether the breaker is tripped and its
// cooldown has not yet elapsed at now.
func (e *Engine) IsCircuitBreakerActive(now int64) bool {
	return e.Metrics.CircuitBreakerActive && now < e.Metrics.CircuitBreakerUntil
}

// TriggerCircuitBreaker halts trading until now + the configured cooldown.
func (e *Engine) TriggerCircuitBreaker(now int64) {
	e.Metrics.CircuitBreakerActive = true
	e.Metrics.CircuitBreakerUntil = now + e.Limits.CircuitBreakerDurationMinutes*60
}

// ViolationsSummary reports the engine's currently breached limits, as
// opposed to CheckOrderRisk's per-order evaluation.
func (e *Engine) ViolationsSummary(now int64) Violations {
	var vs Violations

	if e.IsCircuitBreakerActive(now) {
		vs = append(vs, Violation{
			Type:     CircuitBreakerType,
			Severity: ErrorSev,
			Message:  "circuit breaker active, trading halted",
		})
	}
	if e.Metrics.DailyPnL < -e.Limits.MaxDailyLoss {
		vs = append(vs, Violation{
			Type:     DailyLossLimit,
			Severity: ErrorSev,
			Message:  fmt.Sprintf("daily loss limit breached: %.2f", -e.Metrics.DailyPnL),
		})
	}
	if e.Metrics.DailyTrades >= e.Limits.MaxDailyTrades {
		vs = append(vs, Violation{
			Type:     DailyTradeLimit,
			Severity: ErrorSev,
			Message:  fmt.Sprintf("daily trade limit reached: %d", e.Metrics.DailyTrades),
		})
	}
	if e.Metrics.ConsecutiveLosses >= e.Limits.MaxConsecutiveLosses {
		vs = append(vs, Violation{
			Type:     ConsecutiveLossLimit,
			Severity: ErrorSev,
			Message:  fmt.Sprintf("consecutive loss limit: %d", e.Metrics.ConsecutiveLosses),
		})
	}
	return vs
}

// ResetDailyCounters zeroes the per-day trade/volume counters and clears
// the circuit breaker. It does not reset consecutive-loss tracking or
// daily P&L, matching the original engine's reset_daily_counters.
func (e *Engine) ResetDailyCounters() {
	e.Metrics.DailyTrades = 0
	e.Metrics.DailyVolume = 0
	e.Metrics.DailyTradeIDs = nil
	e.Metrics.CircuitBreakerActive = false
	e.Metrics.CircuitBreakerUntil = 0
}
