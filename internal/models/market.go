package models

import "time"

// Quote is a spot price observation for a canonical BASE/QUOTE symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// TechnicalSnapshot holds the latest indicator values for one symbol.
type TechnicalSnapshot struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	RSI        float64   `json:"rsi"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`
	MACDHist   float64   `json:"macd_hist"`
	SMA20      float64   `json:"sma_20"`
	SMA50      float64   `json:"sma_50"`
	EMA12      float64   `json:"ema_12"`
	EMA26      float64   `json:"ema_26"`
	BBUpper    float64   `json:"bb_upper"`
	BBMiddle   float64   `json:"bb_middle"`
	BBLower    float64   `json:"bb_lower"`
	ComputedAt time.Time `json:"computed_at"`
}

// SignalAction is the recommendation of a TradingSignal.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// TradingSignal is a rule-based recommendation derived from a snapshot.
type TradingSignal struct {
	Symbol     string       `json:"symbol"`
	Action     SignalAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasons    []string     `json:"reasons"`
	Price      float64      `json:"price"`
}

// Article is one news headline.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Categories  string    `json:"categories,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
