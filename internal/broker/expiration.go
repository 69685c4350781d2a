package broker

import (
	"strconv"
	"strings"
	"time"

	"paperbroker/internal/occ"
	"paperbroker/internal/types"
)

func expiryHasPassed(expiry string, nowUnix int64) bool {
	parts := strings.Split(expiry, "/")
	if len(parts) != 3 {
		return false
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	expiryDate := time.Date(year, time.Month(month), day, 23, 59, 59, 0, time.UTC)
	return time.Unix(nowUnix, 0).UTC().After(expiryDate)
}

// ProcessExpirations walks every option position and, for contracts whose
// expiry has passed as of now, resolves them: a contract whose intrinsic
// value exceeds ITMAssignmentThreshold is exercised into the underlying at
// the strike (assignOptionLocked, journaled as a trade), and any other
// contract is recorded as Expired and its position removed.
// AutoCloseDTEThreshold is not read here, and no contract is closed before
// its expiry has passed.
func (b *Broker) ProcessExpirations(now int64) ([]types.OptionAssignment, []types.OptionExpiration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var newAssignments []types.OptionAssignment
	var newExpirations []types.OptionExpiration

	for symbol, pos := range b.positions {
		parsed, isOption := occ.Parse(symbol)
		if !isOption || pos.Quantity == 0 {
			continue
		}
		if !expiryHasPassed(parsed.Expiry, now) {
			continue
		}

		underlyingPrice := b.underlyingPriceLocked(parsed.Underlying, pos.LastPrice)
		intrinsic := intrinsicValue(parsed.OptionType, parsed.Strike, underlyingPrice)

		if intrinsic > b.config.ITMAssignmentThreshold {
			assignment := b.assignOptionLocked(symbol, parsed, pos, underlyingPrice, now)
			newAssignments = append(newAssignments, assignment)
		} else {
			exp := types.OptionExpiration{
				ID:              newID(),
				Symbol:          symbol,
				OptionType:      optionTypeValue(parsed.OptionType),
				Strike:          parsed.Strike,
				Expiry:          parsed.Expiry,
				Quantity:        pos.Quantity,
				UnderlyingPrice: underlyingPrice,
				IntrinsicValue:  intrinsic,
				Timestamp:       now,
				Action:          types.Expired,
			}
			newExpirations = append(newExpirations, exp)
			delete(b.positions, symbol)
		}
	}

	b.optionAssignments = append(b.optionAssignments, newAssignments...)
	b.optionExpirations = append(b.optionExpirations, newExpirations...)
	b.autoSaveIfEnabledLocked()

	return newAssignments, newExpirations
}

func (b *Broker) underlyingPriceLocked(underlying string, fallback float64) float64 {
	if q, ok := b.marketData[underlying]; ok {
		return q.MidPrice()
	}
	return fallback
}

func intrinsicValue(optionType string, strike, underlyingPrice float64) float64 {
	var intrinsic float64
	if optionType == "call" {
		intrinsic = underlyingPrice - strike
	} else {
		intrinsic = strike - underlyingPrice
	}
	if intrinsic < 0 {
		return 0
	}
	return intrinsic
}

// assignOptionLocked resolves an in-the-money expired contract: the
// underlying shares change hands at the strike price, the assignment/
// exercise fee is charged, and the option position is replaced by the
// resulting stock position.
func (b *Broker) assignOptionLocked(symbol string, parsed occ.Parsed, pos *types.Position, underlyingPrice float64, now int64) types.OptionAssignment {
	// A long call exercised receives shares and pays the strike; a long put
	// exercised delivers shares and receives the strike.
	shares := pos.Quantity * parsed.Multiplier
	underlyingQuantity := shares
	side := types.Buy
	if parsed.OptionType == "put" {
		underlyingQuantity = -shares
		side = types.Sell
	}

	fee := b.config.AssignmentFee
	quantity := absInt64OrZero(underlyingQuantity)
	netCashImpact := types.NetAmountForFill(side, parsed.Strike, quantity, fee)
	b.cash += netCashImpact

	delete(b.positions, symbol)

	underlyingPos, ok := b.positions[parsed.Underlying]
	if !ok {
		underlyingPos = types.NewPosition(parsed.Underlying, now)
		b.positions[parsed.Underlying] = underlyingPos
	}
	assignFill := types.Fill{
		Side:     side,
		Quantity: quantity,
		Price:    parsed.Strike,
	}
	underlyingPos.ApplyFill(assignFill, now)

	assignmentID := newID()
	trade := types.Trade{
		ID:             newID(),
		Symbol:         parsed.Underlying,
		Side:           side,
		Quantity:       quantity,
		Price:          parsed.Strike,
		Timestamp:      now,
		Commission:     fee,
		NetAmount:      netCashImpact,
		InstrumentType: types.Stock,
		AssignmentID:   &assignmentID,
	}
	b.recordTradeLocked(trade)

	return types.OptionAssignment{
		ID:                 assignmentID,
		Symbol:             symbol,
		OptionType:         optionTypeValue(parsed.OptionType),
		Strike:             parsed.Strike,
		Expiry:             parsed.Expiry,
		Quantity:           pos.Quantity,
		UnderlyingQuantity: underlyingQuantity,
		AssignmentPrice:    parsed.Strike,
		UnderlyingPrice:    underlyingPrice,
		Timestamp:          now,
		AssignmentFee:      fee,
		NetCashImpact:      netCashImpact,
	}
}

func absInt64OrZero(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func optionTypeValue(s string) types.OptionType {
	if s == "put" {
		return types.Put
	}
	return types.Call
}
