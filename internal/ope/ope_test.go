package ope

import (
	"context"
	"fmt"
	"testing"

	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/pkg/quant"
)

// recordingClient logs every AddOrder/CancelOrder call it receives and
// replays canned responses in order.
type recordingClient struct {
	addOrderCalls []addOrderCall
	addOrderResps []error

	cancelErr error
}

type addOrderCall struct {
	volume           float64
	quoteDenominated bool
}

func (c *recordingClient) AddOrder(ctx context.Context, pair string, side domain.BookSide, volume float64, price quant.PriceTick, decimals int, quoteDenominated bool) (domain.OrderDescriptor, error) {
	c.addOrderCalls = append(c.addOrderCalls, addOrderCall{volume: volume, quoteDenominated: quoteDenominated})
	idx := len(c.addOrderCalls) - 1
	if idx < len(c.addOrderResps) && c.addOrderResps[idx] != nil {
		return domain.OrderDescriptor{}, c.addOrderResps[idx]
	}
	return domain.OrderDescriptor{ID: fmt.Sprintf("OID-%d", idx), Pair: pair, Side: side, Price: price, Volume: volume}, nil
}

func (c *recordingClient) CancelOrder(ctx context.Context, pair, oid string) error { return c.cancelErr }

func (c *recordingClient) Assets(ctx context.Context) (map[string]exchange.AssetInfo, error) { return nil, nil }
func (c *recordingClient) AssetPairs(ctx context.Context) (map[string]domain.Market, error)  { return nil, nil }
func (c *recordingClient) Trades(ctx context.Context, pair, sinceID string) ([]domain.TradeEvent, error) {
	return nil, nil
}
func (c *recordingClient) Depth(ctx context.Context, pair string, count int) ([]domain.BookLevel, []domain.BookLevel, error) {
	return nil, nil, nil
}
func (c *recordingClient) Balance(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (c *recordingClient) OpenOrders(ctx context.Context, pair string) ([]domain.LiveOrder, error) {
	return nil, nil
}
func (c *recordingClient) TradesHistory(ctx context.Context, pair string, since, until string, ofs int) ([]domain.Execution, int, error) {
	return nil, 0, nil
}

func newTestEngine(t *testing.T, client exchange.Client) *Engine {
	t.Helper()
	g := gate.New(client, gate.Config{RequestsPerSec: 1000, Burst: 1000}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)
	return New(g, nil)
}

func TestEngine_Bid_Success(t *testing.T) {
	client := &recordingClient{}
	e := newTestEngine(t, client)

	desc := e.Bid(context.Background(), "XBTUSD", 10, quant.PriceTick(500000), 2)
	if desc == nil {
		t.Fatal("Bid() = nil, want a descriptor")
	}
	if len(client.addOrderCalls) != 1 {
		t.Fatalf("AddOrder called %d times, want 1", len(client.addOrderCalls))
	}
}

func TestEngine_Bid_RetryLadder_VolumeTooLow(t *testing.T) {
	client := &recordingClient{
		addOrderResps: []error{fmt.Errorf("EOrder:Order minimum not met (volume too low)"), nil},
	}
	e := newTestEngine(t, client)

	desc := e.Bid(context.Background(), "XBTUSD", 10, quant.PriceTick(500000), 2)
	if desc == nil {
		t.Fatal("Bid() = nil, want a descriptor after the retry succeeds")
	}
	if len(client.addOrderCalls) != 2 {
		t.Fatalf("AddOrder called %d times, want 2", len(client.addOrderCalls))
	}

	first, second := client.addOrderCalls[0], client.addOrderCalls[1]
	if first.quoteDenominated {
		t.Error("first attempt should not be quote-denominated")
	}
	if !second.quoteDenominated {
		t.Error("second attempt (after a volume error) must set the quote-denominated flag")
	}
	price := quant.PriceTick(500000).Float64(2)
	if want := 10 / price; first.volume != want {
		t.Errorf("first attempt volume = %v, want quoteAmount/price = %v", first.volume, want)
	}
	wantVolume := first.volume * price
	if second.volume != wantVolume {
		t.Errorf("second attempt volume = %v, want volume*price = %v", second.volume, wantVolume)
	}
}

func TestEngine_Bid_RetryLadder_BumpsFloorOnSecondVolumeError(t *testing.T) {
	client := &recordingClient{
		addOrderResps: []error{
			fmt.Errorf("volume too low"),
			fmt.Errorf("volume too low"),
			nil,
		},
	}
	e := newTestEngine(t, client)

	desc := e.Bid(context.Background(), "XBTUSD", 10, quant.PriceTick(500000), 2)
	if desc == nil {
		t.Fatal("Bid() = nil, want a descriptor after the third attempt succeeds")
	}
	if len(client.addOrderCalls) != 3 {
		t.Fatalf("AddOrder called %d times, want 3", len(client.addOrderCalls))
	}

	second, third := client.addOrderCalls[1], client.addOrderCalls[2]
	if third.volume != second.volume+volumeBump {
		t.Errorf("third attempt volume = %v, want second+%v = %v", third.volume, volumeBump, second.volume+volumeBump)
	}
	if !third.quoteDenominated {
		t.Error("third attempt must still carry the quote-denominated flag")
	}
}

func TestEngine_Bid_NonVolumeErrorAbandonsImmediately(t *testing.T) {
	client := &recordingClient{
		addOrderResps: []error{fmt.Errorf("EOrder:Insufficient funds")},
	}
	e := newTestEngine(t, client)

	desc := e.Bid(context.Background(), "XBTUSD", 10, quant.PriceTick(500000), 2)
	if desc != nil {
		t.Errorf("Bid() = %+v, want nil on a non-volume error", desc)
	}
	if len(client.addOrderCalls) != 1 {
		t.Errorf("AddOrder called %d times, want exactly 1 (no retry on a non-volume error)", len(client.addOrderCalls))
	}
}

func TestEngine_Cancel_Success(t *testing.T) {
	client := &recordingClient{}
	e := newTestEngine(t, client)

	if !e.Cancel(context.Background(), "XBTUSD", "OID-1") {
		t.Error("Cancel() = false, want true")
	}
}

func TestEngine_Cancel_UnknownOrderIsIdempotentSuccess(t *testing.T) {
	client := &recordingClient{cancelErr: fmt.Errorf("EOrder:Unknown order")}
	e := newTestEngine(t, client)

	if !e.Cancel(context.Background(), "XBTUSD", "OID-1") {
		t.Error("Cancel() on an already-gone order = false, want true (idempotent)")
	}
}

func TestEngine_Cancel_OtherErrorFails(t *testing.T) {
	client := &recordingClient{cancelErr: fmt.Errorf("ETrade:Rate limit exceeded")}
	e := newTestEngine(t, client)

	if e.Cancel(context.Background(), "XBTUSD", "OID-1") {
		t.Error("Cancel() with a non-idempotent error = true, want false")
	}
}
