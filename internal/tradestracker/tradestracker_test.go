package tradestracker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestFoldFront_CoalescesWithinWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	t1 := domain.NewTradeEvent(base, 1, dec("100"), domain.Buy, "limit", "bm")
	t2 := domain.NewTradeEvent(base.Add(200*time.Millisecond), 1, dec("102"), domain.Buy, "limit", "bm")

	window := foldFront(nil, t1)
	window = foldFront(window, t2)

	if len(window) != 1 {
		t.Fatalf("len(window) = %d, want 1 (coalesced)", len(window))
	}
	if !window[0].Ts.Equal(base) {
		t.Errorf("Ts = %v, want earlier timestamp %v", window[0].Ts, base)
	}
	if window[0].Volume != 2 {
		t.Errorf("Volume = %v, want 2", window[0].Volume)
	}
	if !window[0].Price.Equal(dec("101")) {
		t.Errorf("Price = %v, want 101", window[0].Price)
	}
}

func TestFoldFront_DistinctTagsDoNotMerge(t *testing.T) {
	base := time.Unix(2000, 0)
	t1 := domain.NewTradeEvent(base, 1, dec("100"), domain.Buy, "limit", "bm")
	t2 := domain.NewTradeEvent(base.Add(100*time.Millisecond), 1, dec("100"), domain.Sell, "limit", "bm")

	window := foldFront(nil, t1)
	window = foldFront(window, t2)

	if len(window) != 2 {
		t.Fatalf("len(window) = %d, want 2 (different sides)", len(window))
	}
	if window[0].Side != domain.Sell {
		t.Errorf("front side = %v, want Sell (most recently ingested)", window[0].Side)
	}
}

func TestTracker_MaxAndVWAP(t *testing.T) {
	tr := New("XBTUSD", nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.runWorker(ctx)

	base := time.Now()
	tr.ingest <- domain.NewTradeEvent(base, 1, dec("100"), domain.Buy, "limit", "a")
	tr.ingest <- domain.NewTradeEvent(base.Add(time.Second), 2, dec("110"), domain.Buy, "limit", "b")

	// give the worker a chance to drain the buffered ingest channel
	time.Sleep(20 * time.Millisecond)

	max, err := tr.Max(ctx)
	if err != nil {
		t.Fatalf("Max() error = %v", err)
	}
	if max != 2 {
		t.Errorf("Max() = %v, want 2", max)
	}

	vwap, err := tr.VWAP(ctx, time.Time{}, nil)
	if err != nil {
		t.Fatalf("VWAP() error = %v", err)
	}
	// (1*100 + 2*110) / 3 = 106.666...
	want := dec("320").Div(dec("3"))
	if !vwap.Equal(want) {
		t.Errorf("VWAP() = %v, want %v", vwap, want)
	}
}

func TestTracker_VWAP_EmptyWindowFails(t *testing.T) {
	tr := New("XBTUSD", nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.runWorker(ctx)

	if _, err := tr.VWAP(ctx, time.Time{}, nil); err == nil {
		t.Error("VWAP() on empty window: expected error, got nil")
	}
}

func TestTracker_Pause_SwallowsNextMessage(t *testing.T) {
	tr := New("XBTUSD", nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.runWorker(ctx)

	tr.ingest <- domain.NewTradeEvent(time.Now(), 5, dec("100"), domain.Buy, "limit", "a")
	time.Sleep(10 * time.Millisecond)

	if err := tr.Pause(ctx); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	maxCtx, maxCancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer maxCancel()
	if _, err := tr.Max(maxCtx); err == nil {
		t.Error("Max() right after Pause(): expected the swallowed-message timeout, got a reply")
	}

	// the worker should be back to normal dispatch now
	max, err := tr.Max(ctx)
	if err != nil {
		t.Fatalf("Max() after swallowed message = %v", err)
	}
	if max != 5 {
		t.Errorf("Max() = %v, want 5", max)
	}
}
