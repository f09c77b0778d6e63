package models

import "github.com/spf13/cast"

// Expense is a recorded outgoing cost. Amount is kept exactly as stored so a
// malformed value written by another device does not break decoding.
type Expense struct {
	ID        string `json:"id" mapstructure:"-"`
	Reason    string `json:"reason" mapstructure:"reason"`
	Amount    any    `json:"amount" mapstructure:"amount"`
	Date      string `json:"date" mapstructure:"date"`
	Timestamp int64  `json:"timestamp" mapstructure:"timestamp"`
}

// AmountValue coerces Amount to a number; anything non-numeric counts as 0.
func (e Expense) AmountValue() float64 {
	v, err := cast.ToFloat64E(e.Amount)
	if err != nil || v != v {
		return 0
	}
	return v
}
