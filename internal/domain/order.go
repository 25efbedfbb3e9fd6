package domain

import "spotmaker/pkg/quant"

// OrderDescriptor is what the OrderPlacementEngine hands back on a
// successful bid/ask (spec §4.6): "the returned object is normalized so
// its id field is populated from the first element of the exchange's txid
// list."
type OrderDescriptor struct {
	ID     string
	Pair   string
	Side   BookSide
	Price  quant.PriceTick
	Volume float64
}
