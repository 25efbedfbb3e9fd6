package domain

import "testing"

func TestRoundSnapshot_BestLevels(t *testing.T) {
	snap := RoundSnapshot{
		Bids: []BookLevel{{Price: 10000, Volume: 1}, {Price: 9990, Volume: 2}},
		Asks: []BookLevel{{Price: 10010, Volume: 1}, {Price: 10020, Volume: 2}},
	}

	if got := snap.BestBid().Price; got != 10000 {
		t.Errorf("BestBid price = %v, want 10000", got)
	}
	if got := snap.BestAsk().Price; got != 10010 {
		t.Errorf("BestAsk price = %v, want 10010", got)
	}
	if got := snap.SpreadTicks(); got != 10 {
		t.Errorf("SpreadTicks = %v, want 10", got)
	}
}

func TestRoundSnapshot_EmptySides(t *testing.T) {
	snap := RoundSnapshot{}

	if got := snap.BestBid(); got != (BookLevel{}) {
		t.Errorf("BestBid on empty book = %v, want zero value", got)
	}
	if got := snap.BestAsk(); got != (BookLevel{}) {
		t.Errorf("BestAsk on empty book = %v, want zero value", got)
	}
	if got := snap.SpreadTicks(); got != 0 {
		t.Errorf("SpreadTicks on empty book = %v, want 0", got)
	}
}
