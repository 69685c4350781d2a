package types

import (
	"errors"
	"strings"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderType selects the matching rule applied to an order.
type OrderType string

const (
	Market    OrderType = "market"
	Limit     OrderType = "limit"
	Stop      OrderType = "stop"
	StopLimit OrderType = "stop_limit"
)

// TimeInForce controls how long an order remains eligible to fill.
type TimeInForce string

const (
	Day TimeInForce = "day"
	GTC TimeInForce = "gtc"
	IOC TimeInForce = "ioc"
	FOK TimeInForce = "fok"
)

// InstrumentType distinguishes stock orders/positions from option ones.
type InstrumentType string

const (
	Stock  InstrumentType = "stock"
	Option InstrumentType = "option"
)

// OrderStatus is the lifecycle state of an accepted Order.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
)

// OptionType is call or put.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionDetails identifies an equity option contract. Expiry is MM/DD/YYYY
// to match the persisted wire format used throughout the engine.
type OptionDetails struct {
	Underlying string     `json:"underlying" validate:"required"`
	OptionType OptionType `json:"option_type" validate:"required,oneof=call put"`
	Strike     float64    `json:"strike" validate:"gt=0"`
	Expiry     string     `json:"expiry" validate:"required"`
	Multiplier int64      `json:"multiplier"`
}

// OrderRequest is the caller's immutable intent. It is never persisted.
type OrderRequest struct {
	Symbol         string         `json:"symbol" validate:"required"`
	Side           OrderSide      `json:"side" validate:"required,oneof=buy sell"`
	OrderType      OrderType      `json:"order_type" validate:"required"`
	Quantity       int64          `json:"quantity" validate:"gt=0"`
	Price          *float64       `json:"price,omitempty"`
	StopPrice      *float64       `json:"stop_price,omitempty"`
	TimeInForce    TimeInForce    `json:"time_in_force"`
	ClientOrderID  string         `json:"client_order_id,omitempty"`
	InstrumentType InstrumentType `json:"instrument_type" validate:"required"`
	OptionDetails  *OptionDetails `json:"option_details,omitempty"`
}

// Validate enforces the acceptance rules from spec §4.1. A non-nil error
// means the request is rejected and no broker state changes.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return errors.New("symbol cannot be empty")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}

	switch r.OrderType {
	case Limit:
		if r.Price == nil {
			return errors.New("limit orders require a price")
		}
		if *r.Price <= 0 {
			return errors.New("price must be positive")
		}
	case Stop:
		if r.StopPrice == nil {
			return errors.New("stop orders require a stop price")
		}
		if *r.StopPrice <= 0 {
			return errors.New("stop price must be positive")
		}
	case StopLimit:
		if r.Price == nil || r.StopPrice == nil {
			return errors.New("stop limit orders require both price and stop price")
		}
		if *r.Price <= 0 || *r.StopPrice <= 0 {
			return errors.New("price and stop price must be positive")
		}
	case Market:
		// no price validation required
	default:
		return errors.New("unknown order type")
	}

	return nil
}

// Order is an accepted, tracked instance of an OrderRequest.
type Order struct {
	ID             string         `json:"id"`
	ClientOrderID  string         `json:"client_order_id,omitempty"`
	Symbol         string         `json:"symbol"`
	Side           OrderSide      `json:"side"`
	OrderType      OrderType      `json:"order_type"`
	Quantity       int64          `json:"quantity"`
	FilledQuantity int64          `json:"filled_quantity"`
	Remaining      int64          `json:"remaining_quantity"`
	Price          *float64       `json:"price,omitempty"`
	StopPrice      *float64       `json:"stop_price,omitempty"`
	TimeInForce    TimeInForce    `json:"time_in_force"`
	Status         OrderStatus    `json:"status"`
	CreatedAt      int64          `json:"created_at"`
	UpdatedAt      int64          `json:"updated_at"`
	Fills          []Fill         `json:"fills"`
	InstrumentType InstrumentType `json:"instrument_type"`
	OptionDetails  *OptionDetails `json:"option_details,omitempty"`
}

// NewOrder materializes an Order from a validated request.
func NewOrder(req OrderRequest, id string, now int64) *Order {
	return &Order{
		ID:             id,
		ClientOrderID:  req.ClientOrderID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		OrderType:      req.OrderType,
		Quantity:       req.Quantity,
		Remaining:      req.Quantity,
		Price:          req.Price,
		StopPrice:      req.StopPrice,
		TimeInForce:    req.TimeInForce,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Fills:          make([]Fill, 0, 1),
		InstrumentType: req.InstrumentType,
		OptionDetails:  req.OptionDetails,
	}
}

// IsComplete reports whether the order can no longer receive fills.
func (o *Order) IsComplete() bool {
	switch o.Status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// CanFill reports whether the order is eligible to be matched again.
func (o *Order) CanFill() bool {
	if o.Status != StatusPending && o.Status != StatusPartiallyFilled {
		return false
	}
	return o.Remaining > 0
}

// AddFill records a fill against the order (spec §4.1).
func (o *Order) AddFill(f Fill, now int64) {
	o.FilledQuantity += f.Quantity
	o.Remaining = o.Quantity - o.FilledQuantity
	o.Fills = append(o.Fills, f)
	o.UpdatedAt = now

	if o.Remaining == 0 {
		o.Status = StatusFilled
	} else if o.FilledQuantity > 0 {
		o.Status = StatusPartiallyFilled
	}
}
