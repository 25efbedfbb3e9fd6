package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is one (possibly coalesced) public trade print. Price/Cost use
// decimal.Decimal rather than a PriceTick: trades feed VWAP, which spec §3
// explicitly allows to carry relative floating-point error, and trades are
// never compared against each other by price the way book levels are.
type TradeEvent struct {
	Ts     time.Time
	Volume float64
	Price  decimal.Decimal
	Cost   decimal.Decimal
	Side   FillSide
	Kind   string // exchange-assigned trade kind, e.g. "market", "limit"
	Tag    string // exchange-assigned misc tag, used by the coalescing rule
}

// NewTradeEvent builds a TradeEvent, computing Cost = Volume * Price.
func NewTradeEvent(ts time.Time, volume float64, price decimal.Decimal, side FillSide, kind, tag string) TradeEvent {
	cost := decimal.NewFromFloat(volume).Mul(price)
	return TradeEvent{
		Ts:     ts,
		Volume: volume,
		Price:  price,
		Cost:   cost,
		Side:   side,
		Kind:   kind,
		Tag:    tag,
	}
}

// coalesceWindow is the spec §3 window under which adjacent same
// side/kind/tag trades are merged into one volume-weighted record.
const coalesceWindow = 300 * time.Millisecond

// Coalescable reports whether two trades, assumed adjacent in time, should
// be merged under the spec §3 coalescing rule.
func (t TradeEvent) Coalescable(next TradeEvent) bool {
	if t.Side != next.Side || t.Kind != next.Kind || t.Tag != next.Tag {
		return false
	}
	diff := next.Ts.Sub(t.Ts)
	if diff < 0 {
		diff = -diff
	}
	return diff < coalesceWindow
}

// CoalesceWith merges next into t, volume-weighting the price and keeping
// the earlier of the two timestamps.
func (t TradeEvent) CoalesceWith(next TradeEvent) TradeEvent {
	earlier := t.Ts
	if next.Ts.Before(earlier) {
		earlier = next.Ts
	}
	volume := t.Volume + next.Volume
	cost := t.Cost.Add(next.Cost)
	var price decimal.Decimal
	if volume != 0 {
		price = cost.Div(decimal.NewFromFloat(volume))
	}
	return TradeEvent{
		Ts:     earlier,
		Volume: volume,
		Price:  price,
		Cost:   cost,
		Side:   t.Side,
		Kind:   t.Kind,
		Tag:    t.Tag,
	}
}

// CoalesceTrades merges a time-ordered slice of trades per the spec §3
// rule. It is idempotent: feeding an already-coalesced slice back in
// returns an equivalent slice.
func CoalesceTrades(trades []TradeEvent) []TradeEvent {
	if len(trades) == 0 {
		return trades
	}
	out := make([]TradeEvent, 0, len(trades))
	cur := trades[0]
	for _, next := range trades[1:] {
		if cur.Coalescable(next) {
			cur = cur.CoalesceWith(next)
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}
