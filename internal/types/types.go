package types

import "time"

// PriceQuote is the latest valid daily close of an index at or before the
// requested date.
type PriceQuote struct {
	Symbol string    `json:"symbol"`
	Value  float64   `json:"value"`
	AsOf   time.Time `json:"as_of"`
	Source string    `json:"source"`
}

type Verdict struct {
	Spread   float64 `json:"spread"`
	EUCrisis bool    `json:"eu_crisis"`
	WeekOne  bool    `json:"week_one"`
	Enter    bool    `json:"enter"`
}

// Outcome is the messaging class of a Verdict. Exactly one holds per run.
type Outcome string

const (
	OutcomeEnter      Outcome = "ENTER"
	OutcomeSkipCrisis Outcome = "SKIP_CRISIS"
	OutcomeNoSignal   Outcome = "NO_SIGNAL"
)

type DeliveryReceipt struct {
	MessageID  int64     `json:"message_id"`
	StatusCode int       `json:"status_code"`
	SentAt     time.Time `json:"sent_at"`
}
