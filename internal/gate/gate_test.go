package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"spotmaker/internal/config"
	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
)

func testGate(t *testing.T, client exchange.Client) *Gate {
	t.Helper()
	g := New(client, Config{
		RequestsPerSec:  1000,
		Burst:           1000,
		BreakerFailures: 2,
		BreakerTimeout:  10 * time.Millisecond,
		KeySlots: []config.KeySlot{
			{Label: "primary", APIKey: "k1", APISecret: "s1"},
			{Label: "backup", APIKey: "k2", APISecret: "s2"},
		},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)
	return g
}

func TestGate_Do_Success(t *testing.T) {
	client := exchange.NewPaperClient(map[string]float64{"USD": 1000})
	client.AddMarket(domain.Market{Symbol: "XBTUSD", BaseAsset: "XBT", QuoteAsset: "USD", PriceDecimals: 1})

	g := testGate(t, client)

	got, err := Do(context.Background(), g, func(ctx context.Context, c exchange.Client) (map[string]float64, error) {
		return c.Balance(ctx)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got["USD"] != 1000 {
		t.Errorf("Balance = %v, want USD=1000", got)
	}
}

func TestGate_Do_PropagatesError(t *testing.T) {
	client := exchange.NewPaperClient(nil)
	g := testGate(t, client)

	wantErr := errors.New("boom")
	_, err := Do(context.Background(), g, func(ctx context.Context, c exchange.Client) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
}

func TestGate_Serializes(t *testing.T) {
	client := exchange.NewPaperClient(map[string]float64{"USD": 1})
	g := testGate(t, client)

	order := make(chan int, 2)
	done := make(chan struct{}, 2)

	run := func(n int) {
		_, _ = Do(context.Background(), g, func(ctx context.Context, c exchange.Client) (int, error) {
			order <- n
			return n, nil
		})
		done <- struct{}{}
	}

	go run(1)
	go run(2)
	<-done
	<-done
	close(order)

	count := 0
	for range order {
		count++
	}
	if count != 2 {
		t.Errorf("expected both calls to run, got %d", count)
	}
}

func TestGate_Control_SetKeySlot_UnsupportedClient(t *testing.T) {
	client := exchange.NewPaperClient(nil)
	g := testGate(t, client)

	reply := make(chan error, 1)
	err := g.Control(context.Background(), domain.ControlMessage{
		Kind:    domain.ControlSetKeySlot,
		KeySlot: 0,
		Reply:   reply,
	})
	if err == nil {
		t.Error("Control(SetKeySlot) against PaperClient: expected error, got nil")
	}
}

func TestGate_Control_SetKeySlot_OutOfRange(t *testing.T) {
	client := exchange.NewRESTClient("https://example.test", exchange.NewSigner("k", "s", ""))
	g := testGate(t, client)

	reply := make(chan error, 1)
	err := g.Control(context.Background(), domain.ControlMessage{
		Kind:    domain.ControlSetKeySlot,
		KeySlot: 99,
		Reply:   reply,
	})
	if err == nil {
		t.Error("Control(SetKeySlot) out of range: expected error, got nil")
	}
}

func TestGate_CircuitBreaker_OpensAfterFailures(t *testing.T) {
	client := exchange.NewPaperClient(nil)
	g := testGate(t, client)

	failingCall := func() error {
		_, err := Do(context.Background(), g, func(ctx context.Context, c exchange.Client) (int, error) {
			return 0, errors.New("fail")
		})
		return err
	}

	for i := 0; i < 2; i++ {
		if err := failingCall(); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := Do(context.Background(), g, func(ctx context.Context, c exchange.Client) (int, error) {
		return 1, nil
	})
	if err == nil {
		t.Error("expected circuit breaker to reject the call while open")
	}
}
