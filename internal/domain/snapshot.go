package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/pkg/quant"
)

// RoundSnapshot is the consolidated view a Maker round builds at its start
// by querying BookTracker, TradesTracker, AccountTracker, and the lictor,
// and the view it hands to the `stream` control message so an operator or
// dashboard can observe what one round decided without touching the
// actors directly.
type RoundSnapshot struct {
	Pair      string
	Ts        time.Time
	Decimals  int
	Bids      []BookLevel
	Asks      []BookLevel
	VWAP      decimal.Decimal
	Inventory InventoryPosition
	Balances  map[string]Balance
	Desired   []DesiredOrder
	Live      []LiveOrder
	StatusMsg string
}

// BestBid returns the top of the bid side, or the zero level if empty.
func (r *RoundSnapshot) BestBid() BookLevel {
	if len(r.Bids) == 0 {
		return BookLevel{}
	}
	return r.Bids[0]
}

// BestAsk returns the top of the ask side, or the zero level if empty.
func (r *RoundSnapshot) BestAsk() BookLevel {
	if len(r.Asks) == 0 {
		return BookLevel{}
	}
	return r.Asks[0]
}

// SpreadTicks returns BestAsk-BestBid in price ticks, or 0 if either side
// is empty.
func (r *RoundSnapshot) SpreadTicks() quant.PriceTick {
	if len(r.Bids) == 0 || len(r.Asks) == 0 {
		return 0
	}
	return r.BestAsk().Price - r.BestBid().Price
}
