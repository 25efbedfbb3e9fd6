package maker

// sizingInputs bundles the round snapshot values the §4.7 step 2 sizing
// formulas read.
type sizingInputs struct {
	MaxRecentTrade float64
	Rate           float64 // base/quote conversion rate, from the 4h VWAP
	Base, Quote    float64 // current balances

	ResilienceFactor float64
	FundFactor       float64
	TargetingFactor  float64
}

type sizing struct {
	Resilience  float64
	Total       float64
	Invested    float64
	DeployBase  float64
	DeployQuote float64
}

// computeSizing implements spec §4.7 step 2 exactly:
//
//	resilience = resilience-factor · max-recent-trade
//	total = base + quote/rate
//	invested = base/total
//	deploy-base = base · fund-factor · invested · targeting-factor
//	deploy-quote = quote · fund-factor · (1 − invested·targeting-factor)
func computeSizing(in sizingInputs) sizing {
	s := sizing{Resilience: in.ResilienceFactor * in.MaxRecentTrade}

	if in.Rate != 0 {
		s.Total = in.Base + in.Quote/in.Rate
	}
	if s.Total != 0 {
		s.Invested = in.Base / s.Total
	}

	s.DeployBase = in.Base * in.FundFactor * s.Invested * in.TargetingFactor
	s.DeployQuote = in.Quote * in.FundFactor * (1 - s.Invested*in.TargetingFactor)
	return s
}
