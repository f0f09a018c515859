package models

// -----------------------------------------------------------------------------

// DepthLevels is the number of book levels carried per snapshot.
const DepthLevels = 5

// MTrade carries the last-trade side of a market-data snapshot.
type MTrade struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Qty    float64 `json:"qty"`
	Volume float64 `json:"volume"`
	Vwap   float64 `json:"vwap"`
}

// MDepth is one level of the book.
type MDepth struct {
	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
}

// MMarketData is the full per-security snapshot the differential publisher
// diffs against. The zero value is the baseline for a fresh subscription.
type MMarketData struct {
	Tm    int64 `json:"tm"` // epoch seconds of the last update
	Trade MTrade
	Depth [DepthLevels]MDepth
}

// -----------------------------------------------------------------------------

// MTick is one inbound feed message, as published on the wire by feed adapters.
type MTick struct {
	SecurityID int64   `json:"security_id"`
	Symbol     string  `json:"symbol,omitempty"`
	Tm         int64   `json:"tm"`
	Price      float64 `json:"price"`
	Qty        float64 `json:"qty"`
	BidPrice   float64 `json:"bid_price,omitempty"`
	BidSize    float64 `json:"bid_size,omitempty"`
	AskPrice   float64 `json:"ask_price,omitempty"`
	AskSize    float64 `json:"ask_size,omitempty"`
}
