package types

// Fill is a single execution slice of an order, produced by the matcher.
type Fill struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	Symbol         string         `json:"symbol"`
	Side           OrderSide      `json:"side"`
	Quantity       int64          `json:"quantity"`
	Price          float64        `json:"price"`
	Timestamp      int64          `json:"timestamp"`
	Commission     float64        `json:"commission"`
	InstrumentType InstrumentType `json:"instrument_type"`
	OptionDetails  *OptionDetails `json:"option_details,omitempty"`
	LegNumber      *int32         `json:"leg_number,omitempty"`
}

// Trade is an immutable, journal-durable record of a fill in business
// terms. It is never mutated after creation (spec invariant I4/I7).
type Trade struct {
	ID             string         `json:"id"`
	Symbol         string         `json:"symbol"`
	Side           OrderSide      `json:"side"`
	Quantity       int64          `json:"quantity"`
	Price          float64        `json:"price"`
	Timestamp      int64          `json:"timestamp"`
	OrderID        string         `json:"order_id"`
	Commission     float64        `json:"commission"`
	NetAmount      float64        `json:"net_amount"`
	InstrumentType InstrumentType `json:"instrument_type"`
	OptionDetails  *OptionDetails `json:"option_details,omitempty"`
	LegNumber      *int32         `json:"leg_number,omitempty"`
	AssignmentID   *string        `json:"assignment_id,omitempty"`
}

// NetAmountForFill computes the cash delta a fill produces (spec I3):
// buy = -(price*qty + commission); sell = +price*qty - commission.
func NetAmountForFill(side OrderSide, price float64, quantity int64, commission float64) float64 {
	gross := price * float64(quantity)
	if side == Buy {
		return -(gross + commission)
	}
	return gross - commission
}

// TradeExecution is the result of attempting to place or retry an order.
type TradeExecution struct {
	OrderID string      `json:"order_id"`
	Fills   []Fill      `json:"fills"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message"`
}
