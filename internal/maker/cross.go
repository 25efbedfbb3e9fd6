package maker

import "spotmaker/internal/domain"

// profitMargin computes (a/b)·(1-f/100), the spec §4.7 step 4 formula for
// whether quoting one tick inside the current top of book nets a profit
// after fees. b and a are price ticks, already nudged one tick toward
// each other by the caller.
func profitMargin(b, a int64, feePct float64) float64 {
	if b == 0 {
		return 0
	}
	return (float64(a) / float64(b)) * (1 - feePct/100)
}

// crossSpread walks down otherBids and up otherAsks, eating whichever
// side has the smaller top residual, until the one-tick-inside spread is
// wide enough to clear fees (profit margin exceeds 1) or one side runs
// out. Equal top volumes drop both tops (spec §4.7 step 4's tie-break).
// bids must be sorted best-first (descending price), asks best-first
// (ascending price); both are returned in the same order, truncated.
func crossSpread(bids, asks []domain.BookLevel, feePct float64) ([]domain.BookLevel, []domain.BookLevel) {
	for len(bids) > 0 && len(asks) > 0 {
		margin := profitMargin(int64(bids[0].Price)+1, int64(asks[0].Price)-1, feePct)
		if margin > 1 {
			break
		}

		switch {
		case bids[0].Volume < asks[0].Volume:
			bids = bids[1:]
		case asks[0].Volume < bids[0].Volume:
			asks = asks[1:]
		default:
			bids = bids[1:]
			asks = asks[1:]
		}
	}
	return bids, asks
}
