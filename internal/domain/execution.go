package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/pkg/quant"
)

// Execution is one fill reported by the exchange's paginated fill-history
// endpoint, as the lictor accumulates them (spec §4.4). OID ties it back
// to the order that generated it; TxID is the fill's own unique id and is
// what the lictor's since-cursor advances on.
type Execution struct {
	OID    string
	TxID   string
	Ts     time.Time
	Pair   string
	Side   FillSide
	Price  quant.PriceTick
	Volume float64
	Cost   decimal.Decimal
	Fee    decimal.Decimal
}
