package broker

import (
	"errors"
	"fmt"

	"paperbroker/internal/occ"
	"paperbroker/internal/risk"
	"paperbroker/internal/types"
)

// Sentinel errors for the spec §7 error taxonomy. Validation and
// PreconditionNotMet map to ErrValidation/ErrInsufficient*; RiskRejected
// maps to ErrRiskRejected. MarketClosed is not an error: PlaceOrder returns
// the order as pending, with the closed-market reason in its message.
var (
	ErrValidation          = errors.New("order validation failed")
	ErrRiskRejected        = errors.New("order rejected by risk engine")
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
	ErrInsufficientShares  = errors.New("insufficient shares to sell")
	ErrUnknownOrder        = errors.New("unknown order id")
	ErrOrderComplete       = errors.New("cannot cancel a completed order")
)

// PlaceOrder validates, risk-checks, and attempts to execute req, returning
// the resulting TradeExecution. It implements spec §4.1/§4.5's acceptance
// pipeline: structural validation, risk check, buying-power/shares check,
// then matching.
func (b *Broker) PlaceOrder(req types.OrderRequest) (types.TradeExecution, error) {
	if err := req.Validate(); err != nil {
		return types.TradeExecution{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	estimatedPrice := b.estimateExecutionPriceLocked(req)

	existingPosition := b.positions[req.Symbol]
	snap := b.mtmSnapshotLocked()

	violations := b.riskEngine.CheckOrderRisk(risk.OrderContext{
		Request:          req,
		EstimatedPrice:    estimatedPrice,
		PortfolioEquity:   snap.TotalEquity,
		ExistingPosition:  existingPosition,
		Greeks: risk.PortfolioGreeksView{
			Delta: snap.PortfolioGreeks.Delta,
			Gamma: snap.PortfolioGreeks.Gamma,
			Vega:  snap.PortfolioGreeks.Vega,
		},
		Now: now,
	})
	if violations.HasBlocking() {
		b.logger.LogRejection(logCtx("", req.Symbol), "risk_violation", map[string]any{"violations": violations.Error()})
		return types.TradeExecution{}, fmt.Errorf("%w: %s", ErrRiskRejected, violations.Error())
	}

	if req.Side == types.Buy {
		cost, err := b.estimateOrderCostLocked(req)
		if err != nil {
			return types.TradeExecution{}, err
		}
		if cost > b.cash {
			b.logger.LogRejection(logCtx("", req.Symbol), "insufficient_buying_power", map[string]any{"cost": cost, "cash": b.cash})
			return types.TradeExecution{}, ErrInsufficientBuyingPower
		}
	} else {
		held := int64(0)
		if existingPosition != nil && existingPosition.Quantity > 0 {
			held = existingPosition.Quantity
		}
		if held < req.Quantity {
			b.logger.LogRejection(logCtx("", req.Symbol), "insufficient_shares", map[string]any{"held": held, "requested": req.Quantity})
			return types.TradeExecution{}, ErrInsufficientShares
		}
	}

	id := newID()
	order := types.NewOrder(req, id, now)
	execution := b.tryExecuteOrderLocked(order)
	b.orders[id] = order

	return execution, nil
}

// CancelOrder marks an open order canceled. It is an error to cancel an
// order that has already reached a terminal state.
func (b *Broker) CancelOrder(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if order.IsComplete() {
		return fmt.Errorf("%w: %s", ErrOrderComplete, orderID)
	}

	order.Status = types.StatusCanceled
	order.UpdatedAt = b.now()
	b.removePendingLocked(orderID)
	b.autoSaveIfEnabledLocked()
	return nil
}

// estimateOrderCostLocked computes the gross notional plus commission a
// buy order would cost if fully filled at the estimated price (spec §4.1
// pre-trade sizing).
func (b *Broker) estimateOrderCostLocked(req types.OrderRequest) (float64, error) {
	price := b.estimateExecutionPriceLocked(req)
	gross := price * float64(req.Quantity)
	commission := b.calculateCommission(req.InstrumentType, req.Quantity)
	return gross + commission, nil
}

// estimateExecutionPriceLocked implements the full ask/bid -> last ->
// configured-default fallback chain (spec §9 "Redesigned Behavior" #5),
// replacing the original engine's bare .unwrap_or(100.0).
func (b *Broker) estimateExecutionPriceLocked(req types.OrderRequest) float64 {
	const defaultPrice = 100.0
	switch req.OrderType {
	case types.Limit:
		if req.Price != nil {
			return *req.Price
		}
		return b.quoteEstimate(req.Symbol, req.Side, defaultPrice)
	case types.Stop, types.StopLimit:
		if req.StopPrice != nil {
			return *req.StopPrice
		}
		return b.quoteEstimate(req.Symbol, req.Side, defaultPrice)
	default: // Market
		return b.quoteEstimate(req.Symbol, req.Side, defaultPrice)
	}
}

func (b *Broker) quoteEstimate(symbol string, side types.OrderSide, fallback float64) float64 {
	quote, ok := b.marketData[symbol]
	if !ok {
		return fallback
	}
	return quote.EstimatePrice(side, fallback)
}

func (b *Broker) calculateCommission(instrument types.InstrumentType, quantity int64) float64 {
	if instrument == types.Option {
		c := float64(quantity)*b.config.OptionCommissionPerContract + b.config.OptionCommissionPerTrade
		return clamp(c, b.config.OptionMinCommission, b.config.OptionMaxCommission)
	}
	c := float64(quantity)*b.config.CommissionPerShare + b.config.CommissionPerTrade
	return clamp(c, b.config.MinCommission, b.config.MaxCommission)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClosePosition submits a market order to flatten the named symbol,
// preserving the position's actual instrument type and option details
// instead of hardcoding Stock (spec §9 "Redesigned Behavior" #4).
func (b *Broker) ClosePosition(symbol string) (types.TradeExecution, error) {
	b.mu.Lock()
	pos, ok := b.positions[symbol]
	if !ok || pos.Quantity == 0 {
		b.mu.Unlock()
		return types.TradeExecution{}, fmt.Errorf("%w: no open position in %s", ErrValidation, symbol)
	}

	side := types.Sell
	quantity := pos.Quantity
	if quantity < 0 {
		side = types.Buy
		quantity = -quantity
	}
	instrument := instrumentTypeForSymbol(symbol)
	b.mu.Unlock()

	req := types.OrderRequest{
		Symbol:         symbol,
		Side:           side,
		OrderType:      types.Market,
		Quantity:       quantity,
		TimeInForce:    types.Day,
		InstrumentType: instrument,
		OptionDetails:  optionDetailsForSymbol(symbol),
	}
	return b.PlaceOrder(req)
}

func optionDetailsForSymbol(symbol string) *types.OptionDetails {
	parsed, ok := occ.Parse(symbol)
	if !ok {
		return nil
	}
	optType := types.Call
	if parsed.OptionType == "put" {
		optType = types.Put
	}
	return &types.OptionDetails{
		Underlying: parsed.Underlying,
		OptionType: optType,
		Strike:     parsed.Strike,
		Expiry:     parsed.Expiry,
		Multiplier: parsed.Multiplier,
	}
}

func instrumentTypeForSymbol(symbol string) types.InstrumentType {
	if occ.IsOptionSymbol(symbol) {
		return types.Option
	}
	return types.Stock
}
