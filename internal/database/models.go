package database

import (
	"encoding/json"
	"time"
)

// ScreeningResult is one deduplicated screening snapshot row.
type ScreeningResult struct {
	ID             int64           `json:"id"`
	PassID         string          `json:"pass_id"`
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe"`
	Price          float64         `json:"price"`
	PriceChange5m  float64         `json:"price_change_5m"`
	PriceChange15m float64         `json:"price_change_15m"`
	PriceChange1h  float64         `json:"price_change_1h"`
	PriceChange4h  float64         `json:"price_change_4h"`
	PriceChange24h float64         `json:"price_change_24h"`
	QuoteVolume24h float64         `json:"quote_volume_24h"`
	BetaScore      float64         `json:"beta_score"`
	VolumeScore    float64         `json:"volume_score"`
	TechnicalScore float64         `json:"technical_score"`
	TotalScore     float64         `json:"total_score"`
	RSI            float64         `json:"rsi"`
	VolumeSurge    bool            `json:"volume_surge"`
	MACDGolden     bool            `json:"macd_golden_cross"`
	AboveAllEMA    bool            `json:"above_all_ema"`
	PriceAnomaly   bool            `json:"price_anomaly"`
	Signals        []string        `json:"signals"`
	Indicators     json.RawMessage `json:"indicators,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Position statuses.
const (
	PositionOpen   = "OPEN"
	PositionClosed = "CLOSED"
)

// Trade types.
const (
	TradeEntry       = "ENTRY"
	TradePartialExit = "PARTIAL_EXIT"
	TradeFullExit    = "FULL_EXIT"
)

// Auto-trade log actions.
const (
	AutoActionSkip = "SKIP"
	AutoActionOpen = "OPEN_POSITION"
)

// SimAccount is a paper-trading account with its risk parameters.
type SimAccount struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	InitialBalance    float64   `json:"initial_balance"`
	CurrentBalance    float64   `json:"current_balance"`
	TotalEquity       float64   `json:"total_equity"`
	MaxPositions      int       `json:"max_positions"`
	PositionPct       float64   `json:"position_pct"`
	StopLossPct       float64   `json:"stop_loss_pct"`
	TakeProfitLevels  []float64 `json:"take_profit_levels"`
	EntryScoreMin     float64   `json:"entry_score_min"`
	EntryTechnicalMin float64   `json:"entry_technical_min"`
	CommissionRate    float64   `json:"commission_rate"`
	AutoTrade         bool      `json:"auto_trade"`
	Timeframe         string    `json:"timeframe"`
	TotalTrades       int       `json:"total_trades"`
	WinningTrades     int       `json:"winning_trades"`
	LosingTrades      int       `json:"losing_trades"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SimPosition is one open or closed paper position. Quantity is the
// remaining size; InitialQuantity never changes after entry so partial-exit
// fractions stay constant. TakeProfitPrices holds the unconsumed ladder.
type SimPosition struct {
	ID               int64      `json:"id"`
	AccountID        int64      `json:"account_id"`
	Symbol           string     `json:"symbol"`
	Status           string     `json:"status"`
	EntryPrice       float64    `json:"entry_price"`
	Quantity         float64    `json:"quantity"`
	InitialQuantity  float64    `json:"initial_quantity"`
	PositionValue    float64    `json:"position_value"`
	StopLossPrice    float64    `json:"stop_loss_price"`
	TakeProfitPrices []float64  `json:"take_profit_prices"`
	TakeProfitTotal  int        `json:"take_profit_total"`
	CurrentPrice     float64    `json:"current_price"`
	UnrealizedPnL    float64    `json:"unrealized_pnl"`
	RealizedPnL      float64    `json:"realized_pnl"`
	EntryScore       float64    `json:"entry_score"`
	EntrySignals     []string   `json:"entry_signals"`
	CloseReason      *string    `json:"close_reason,omitempty"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

// SimTrade is one executed paper fill.
type SimTrade struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	PositionID int64     `json:"position_id"`
	Symbol     string    `json:"symbol"`
	TradeType  string    `json:"trade_type"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	Value      float64   `json:"value"`
	Commission float64   `json:"commission"`
	PnL        *float64  `json:"pnl,omitempty"`
	PnLPct     *float64  `json:"pnl_pct,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AutoTradingLog is one auto-trade decision, kept for auditability.
type AutoTradingLog struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	TotalScore float64   `json:"total_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationSettings is the singleton gate configuration. Quiet hours are
// HH:MM strings and may wrap midnight.
type NotificationSettings struct {
	ID                 int64      `json:"id"`
	Enabled            bool       `json:"enabled"`
	MinScore           float64    `json:"min_score"`
	QuietStart         string     `json:"quiet_start"`
	QuietEnd           string     `json:"quiet_end"`
	MaxPerDay          int        `json:"max_per_day"`
	MinIntervalMinutes int        `json:"min_interval_minutes"`
	SentToday          int        `json:"sent_today"`
	CounterDate        time.Time  `json:"counter_date"`
	LastSentAt         *time.Time `json:"last_sent_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Alert is one sent notification, kept as a log.
type Alert struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	TotalScore float64   `json:"total_score"`
	Message    string    `json:"message"`
	Channels   []string  `json:"channels"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccountSummary aggregates an account's performance for the API surface.
type AccountSummary struct {
	Account       *SimAccount `json:"account"`
	OpenPositions int         `json:"open_positions"`
	RealizedPnL   float64     `json:"realized_pnl"`
	UnrealizedPnL float64     `json:"unrealized_pnl"`
	WinRate       float64     `json:"win_rate"`
	ReturnPct     float64     `json:"return_pct"`
}
