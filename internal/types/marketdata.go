package types

// MarketData is the latest observed quote for a symbol.
type MarketData struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	BidSize   int64   `json:"bid_size"`
	AskSize   int64   `json:"ask_size"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// MidPrice implements spec §4.3's mark price fallback chain: both sides
// present average them, one side present use it alone, otherwise fall back
// to the last trade price.
func (m MarketData) MidPrice() float64 {
	switch {
	case m.Bid > 0 && m.Ask > 0:
		return (m.Bid + m.Ask) / 2
	case m.Bid > 0:
		return m.Bid
	case m.Ask > 0:
		return m.Ask
	default:
		return m.LastPrice
	}
}

// EstimatePrice implements the fuller ask/bid -> last -> default fallback
// chain spec §9 "Redesigned Behavior" #5 requires for pre-trade cost sizing.
func (m MarketData) EstimatePrice(side OrderSide, fallback float64) float64 {
	if side == Buy {
		if m.Ask > 0 {
			return m.Ask
		}
	} else {
		if m.Bid > 0 {
			return m.Bid
		}
	}
	if m.LastPrice > 0 {
		return m.LastPrice
	}
	return fallback
}
