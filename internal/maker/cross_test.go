package maker

import (
	"testing"

	"spotmaker/internal/domain"
)

func TestCrossSpread_WidensUntilMarginClears(t *testing.T) {
	// (best-ask-1)/(best-bid+1) = 100/101 ~= 0.99, times (1-0/100) still
	// < 1: the thin bid top (volume 1 < 5) gets eaten first, exposing 50,
	// and 100/51 > 1 clears the margin.
	bids := []domain.BookLevel{{Price: 100, Volume: 1}, {Price: 50, Volume: 10}}
	asks := []domain.BookLevel{{Price: 101, Volume: 5}}

	gotBids, gotAsks := crossSpread(bids, asks, 0)

	if len(gotBids) != 1 || gotBids[0].Price != 50 {
		t.Errorf("bids after crossSpread = %+v, want the thin top eaten", gotBids)
	}
	if len(gotAsks) != 1 {
		t.Errorf("asks after crossSpread = %+v, want the ask side untouched", gotAsks)
	}
}

func TestCrossSpread_TieBreakDropsBothTops(t *testing.T) {
	bids := []domain.BookLevel{{Price: 99, Volume: 2}, {Price: 50, Volume: 10}}
	asks := []domain.BookLevel{{Price: 100, Volume: 2}, {Price: 150, Volume: 10}}

	gotBids, gotAsks := crossSpread(bids, asks, 0)

	if len(gotBids) != 1 || gotBids[0].Price != 50 {
		t.Errorf("bids after crossSpread = %+v, want the tied top dropped", gotBids)
	}
	if len(gotAsks) != 1 || gotAsks[0].Price != 150 {
		t.Errorf("asks after crossSpread = %+v, want the tied top dropped", gotAsks)
	}
}

func TestCrossSpread_StopsImmediatelyWhenAlreadyWide(t *testing.T) {
	bids := []domain.BookLevel{{Price: 100, Volume: 1}}
	asks := []domain.BookLevel{{Price: 1000, Volume: 1}}

	gotBids, gotAsks := crossSpread(bids, asks, 0)

	if len(gotBids) != 1 || len(gotAsks) != 1 {
		t.Errorf("crossSpread() on an already-wide book ate a level: bids=%+v asks=%+v", gotBids, gotAsks)
	}
}

func TestCrossSpread_ExhaustsOneSideWithoutPanicking(t *testing.T) {
	bids := []domain.BookLevel{{Price: 100, Volume: 1}}
	asks := []domain.BookLevel{{Price: 101, Volume: 100}}

	gotBids, gotAsks := crossSpread(bids, asks, 0)

	if len(gotBids) != 0 {
		t.Errorf("bids after crossSpread = %+v, want the side exhausted", gotBids)
	}
	_ = gotAsks
}
