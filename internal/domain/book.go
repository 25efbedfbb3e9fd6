package domain

import "spotmaker/pkg/quant"

// BookLevel is one price level of an order book side: a price tick and the
// total resting volume (in base-asset units) at that price.
type BookLevel struct {
	Price  quant.PriceTick
	Volume float64
}

// LiveOrder is an order currently resting on the exchange, as reported by
// OpenOrders.
type LiveOrder struct {
	OID    string
	Price  quant.PriceTick
	Volume float64
}

// DesiredOrder is an order the ladder generator wants resting on the
// exchange. QuoteAmount is in the side's native unit: quote currency for
// a bid (the OrderPlacementEngine's Bid divides it by the price to get the
// base volume it submits) and base asset for an ask (submitted as is).
type DesiredOrder struct {
	QuoteAmount float64
	Price       quant.PriceTick
}
