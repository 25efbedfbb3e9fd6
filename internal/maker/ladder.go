package maker

import (
	"sort"

	"spotmaker/internal/domain"
	"spotmaker/pkg/quant"
	"spotmaker/pkg/safe"
)

// shareWeight biases each level's allocation weight toward depth already
// accumulated below it (spec §4.7 step 5: "share_i = 11/6 · cumulative_i").
const shareWeight = 11.0 / 6.0

type ladderLevel struct {
	level domain.BookLevel
	cum   float64
	share float64
}

// dumbotOneSide is the §4.7 step 5 ladder generator. side must already be
// cleaned (ignoreMine) and, where applicable, spread-crossed, ordered
// best-price-first. delta is added to each kept level's price tick (+1
// for bids, -1 for asks — "one tick inside"). The result is sorted by
// less and never exceeds maxOrders entries.
//
// Per §9 open question (a): the walk's sort excludes the head level
// (index 0) from the by-share ranking, then always re-prepends it — the
// inside level is kept regardless of where the walk would otherwise rank
// it.
func dumbotOneSide(side []domain.BookLevel, resilience, funds float64, delta quant.PriceTick, maxOrders int, less func(a, b domain.DesiredOrder) bool) []domain.DesiredOrder {
	if len(side) == 0 || funds <= 0 {
		return nil
	}

	var cum float64
	levels := make([]ladderLevel, 0, len(side))
	for _, lvl := range side {
		cum += lvl.Volume
		levels = append(levels, ladderLevel{level: lvl, cum: cum})
		if cum >= resilience {
			break
		}
	}
	for i := range levels {
		levels[i].share = shareWeight * levels[i].cum
	}

	head := levels[0]
	tail := append([]ladderLevel(nil), levels[1:]...)
	sort.SliceStable(tail, func(i, j int) bool { return tail[i].share > tail[j].share })

	keep := minInt(maxOrders, len(levels)) - 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(tail) {
		keep = len(tail)
	}

	relevant := append([]ladderLevel{head}, tail[:keep]...)

	var shareSum float64
	for _, l := range relevant {
		shareSum += l.share
	}
	if shareSum <= 0 {
		return nil
	}

	out := make([]domain.DesiredOrder, 0, len(relevant))
	for _, l := range relevant {
		out = append(out, domain.DesiredOrder{
			QuoteAmount: funds * (l.share / shareSum),
			Price:       quant.PriceTick(safe.SafeAdd(int64(l.level.Price), int64(delta))),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
