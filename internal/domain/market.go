package domain

// Market describes one tradeable pair. cmd/marketmaker builds it once at
// bootstrap from the configured pairs and it never changes afterward
// (spec §3: "immutable after bootstrap").
type Market struct {
	Symbol        string
	PriceDecimals int
	BaseAsset     string
	QuoteAsset    string
	FeePct        float64 // maker/taker fee, percent (e.g. 0.16 = 0.16%)
}
