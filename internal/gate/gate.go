// Package gate serializes every authenticated call to the exchange
// through a single worker, so credentials live in one place and the
// exchange's rate limit is never exceeded by concurrent callers.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spotmaker/internal/config"
	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/infra"
)

// signerSetter is implemented by exchange clients that support a
// credential-slot hot-swap. PaperClient does not implement it; calling
// ControlSetKeySlot against a paper-mode Gate returns an error.
type signerSetter interface {
	SetSigner(*exchange.Signer)
}

type call struct {
	fn    func(ctx context.Context, client exchange.Client) (any, error)
	reply chan callResult
}

type callResult struct {
	value any
	err   error
}

// Gate is the single serializer in front of the signed HTTP transport
// (spec §4.1): one worker goroutine, one in-flight request at a time,
// paced by a rate limiter and protected by a circuit breaker.
type Gate struct {
	client  exchange.Client
	limiter *infra.RateLimiter
	breaker *infra.CircuitBreaker

	calls   chan call
	control chan domain.ControlMessage

	keySlots []config.KeySlot
	logger   *slog.Logger
}

// Config bundles the Gate's tunables.
type Config struct {
	RequestsPerSec  float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
	KeySlots        []config.KeySlot
}

// New builds a Gate fronting client.
func New(client exchange.Client, cfg Config, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := infra.DefaultCircuitBreakerConfig("gate")
	if cfg.BreakerFailures > 0 {
		breakerCfg.FailureThreshold = cfg.BreakerFailures
	}
	if cfg.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.BreakerTimeout
	}

	return &Gate{
		client:   client,
		limiter:  infra.NewRateLimiter(cfg.Burst, cfg.RequestsPerSec),
		breaker:  infra.NewCircuitBreaker(breakerCfg),
		calls:    make(chan call),
		control:  make(chan domain.ControlMessage),
		keySlots: cfg.KeySlots,
		logger:   logger,
	}
}

// Do enqueues fn to run against the Gate's exchange client, serialized
// behind every other in-flight call, and returns its result. fn is the
// "request carrier" the spec describes the Gate as polymorphic over.
func Do[T any](ctx context.Context, g *Gate, fn func(context.Context, exchange.Client) (T, error)) (T, error) {
	reply := make(chan callResult, 1)
	wrapped := func(ctx context.Context, c exchange.Client) (any, error) {
		return fn(ctx, c)
	}

	var zero T
	select {
	case g.calls <- call{fn: wrapped, reply: reply}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-reply:
		if res.err != nil {
			return zero, res.err
		}
		v, _ := res.value.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Control sends a directive to the Gate and waits for it to be applied.
// Only ControlSetKeySlot is supported; any other kind is answered with an
// error.
func (g *Gate) Control(ctx context.Context, msg domain.ControlMessage) error {
	select {
	case g.control <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	if msg.Reply == nil {
		return nil
	}
	select {
	case err := <-msg.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the Gate's worker until ctx is cancelled, restarting it if
// it panics on a malformed request description (spec §4.1: "a malformed
// request description terminates the worker, which is then restarted").
func (g *Gate) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		g.runWorker(ctx)
	}
}

func (g *Gate) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gate worker panicked, restarting", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-g.control:
			g.handleControl(msg)
		case c := <-g.calls:
			g.handleCall(ctx, c)
		}
	}
}

func (g *Gate) handleCall(ctx context.Context, c call) {
	g.limiter.Wait()

	if !g.breaker.Allow() {
		c.reply <- callResult{err: fmt.Errorf("gate: circuit breaker open")}
		return
	}

	v, err := c.fn(ctx, g.client)
	if err != nil {
		g.breaker.RecordFailure()
	} else {
		g.breaker.RecordSuccess()
	}
	c.reply <- callResult{value: v, err: err}
}

func (g *Gate) handleControl(msg domain.ControlMessage) {
	var err error
	switch msg.Kind {
	case domain.ControlSetKeySlot:
		err = g.setKeySlot(msg.KeySlot)
	default:
		err = fmt.Errorf("gate: unsupported control kind %q", msg.Kind)
	}

	if msg.Reply != nil {
		msg.Reply <- err
	}
}

func (g *Gate) setKeySlot(slot int) error {
	setter, ok := g.client.(signerSetter)
	if !ok {
		return fmt.Errorf("gate: client does not support credential rotation")
	}
	if slot < 0 || slot >= len(g.keySlots) {
		return fmt.Errorf("gate: key slot %d out of range (%d configured)", slot, len(g.keySlots))
	}

	ks := g.keySlots[slot]
	setter.SetSigner(exchange.NewSigner(ks.APIKey, ks.APISecret, ks.Passphrase))
	g.logger.Info("gate: key slot rotated", slog.Int("slot", slot), slog.String("label", ks.Label))
	return nil
}
