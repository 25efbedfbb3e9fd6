package maker

import "spotmaker/internal/domain"

// epsilon is the residual-volume floor below which a cleaned book level is
// dropped entirely (spec §4.7 step 3, §8 scenarios 1-3).
const epsilon = 1e-3

// ignoreMine subtracts the agent's own resting volume at each price from
// the public book level at that price, dropping any level whose residual
// falls below epsilon. book and mine are assumed to share a side
// (both bids, or both asks); book's ordering is preserved.
func ignoreMine(book, mine []domain.BookLevel) []domain.BookLevel {
	minePrice := make(map[int64]float64, len(mine))
	for _, m := range mine {
		minePrice[int64(m.Price)] += m.Volume
	}

	out := make([]domain.BookLevel, 0, len(book))
	for _, lvl := range book {
		residual := lvl.Volume - minePrice[int64(lvl.Price)]
		if residual < epsilon {
			continue
		}
		out = append(out, domain.BookLevel{Price: lvl.Price, Volume: residual})
	}
	return out
}
