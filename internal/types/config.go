package types

// BrokerConfig holds the commission/slippage/fill-simulation parameters
// applied uniformly by the matching engine (spec §4.2, §4.5).
type BrokerConfig struct {
	CommissionPerShare        float64 `json:"commission_per_share" validate:"gte=0"`
	CommissionPerTrade        float64 `json:"commission_per_trade" validate:"gte=0"`
	MinCommission             float64 `json:"min_commission" validate:"gte=0"`
	MaxCommission             float64 `json:"max_commission" validate:"gte=0"`
	OptionCommissionPerContract float64 `json:"option_commission_per_contract" validate:"gte=0"`
	OptionCommissionPerTrade  float64 `json:"option_commission_per_trade" validate:"gte=0"`
	OptionMinCommission       float64 `json:"option_min_commission" validate:"gte=0"`
	OptionMaxCommission       float64 `json:"option_max_commission" validate:"gte=0"`
	AssignmentFee              float64 `json:"assignment_fee" validate:"gte=0"`
	ExerciseFee                float64 `json:"exercise_fee" validate:"gte=0"`
	SlippageBps                float64 `json:"slippage_bps" validate:"gte=0"`
	PartialFillProbability     float64 `json:"partial_fill_probability" validate:"gte=0,lte=1"`
	MinPartialFillRatio        float64 `json:"min_partial_fill_ratio" validate:"gte=0,lte=1"`
	AutoCloseDTEThreshold      int64   `json:"auto_close_dte_threshold"`
	ITMAssignmentThreshold     float64 `json:"itm_assignment_threshold" validate:"gte=0"`
}

// DefaultBrokerConfig mirrors the original engine's BrokerConfig::default().
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		CommissionPerShare:          0.005,
		CommissionPerTrade:          0.0,
		MinCommission:               1.0,
		MaxCommission:               10.0,
		OptionCommissionPerContract: 0.65,
		OptionCommissionPerTrade:    0.0,
		OptionMinCommission:         1.0,
		OptionMaxCommission:         50.0,
		AssignmentFee:               19.99,
		ExerciseFee:                 19.99,
		SlippageBps:                 5.0,
		PartialFillProbability:      0.1,
		MinPartialFillRatio:         0.3,
		AutoCloseDTEThreshold:       0,
		ITMAssignmentThreshold:      0.01,
	}
}

// ExpirationAction records what happened to an option position at expiry.
type ExpirationAction string

const (
	Expired       ExpirationAction = "expired"
	AutoExercised ExpirationAction = "auto_exercised"
	AutoClosed    ExpirationAction = "auto_closed"
)

// OptionAssignment is a durable record of an ITM assignment/exercise event.
type OptionAssignment struct {
	ID                string     `json:"id"`
	Symbol            string     `json:"symbol"`
	OptionType        OptionType `json:"option_type"`
	Strike            float64    `json:"strike"`
	Expiry            string     `json:"expiry"`
	Quantity          int64      `json:"quantity"`
	UnderlyingQuantity int64     `json:"underlying_quantity"`
	AssignmentPrice   float64    `json:"assignment_price"`
	UnderlyingPrice   float64    `json:"underlying_price"`
	Timestamp         int64      `json:"timestamp"`
	AssignmentFee     float64    `json:"assignment_fee"`
	NetCashImpact     float64    `json:"net_cash_impact"`
}

// OptionExpiration is a durable record of an option reaching its expiry.
type OptionExpiration struct {
	ID              string           `json:"id"`
	Symbol          string           `json:"symbol"`
	OptionType      OptionType       `json:"option_type"`
	Strike          float64          `json:"strike"`
	Expiry          string           `json:"expiry"`
	Quantity        int64            `json:"quantity"`
	UnderlyingPrice float64          `json:"underlying_price"`
	IntrinsicValue  float64          `json:"intrinsic_value"`
	Timestamp       int64            `json:"timestamp"`
	Action          ExpirationAction `json:"action"`
}
