package solarinverter

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Transport is one live connection to the inverter.
type Transport interface {
	ReadHoldingRegisters(address, quantity uint16) ([]uint16, error)
	Close() error
}

// Dialer establishes a fresh Transport.
type Dialer func(ctx context.Context) (Transport, error)

// Bus serializes all register reads over a single shared Transport.
// Each read sequence holds the lock for its full duration, the inverter
// cannot answer interleaved requests.
// A failed read discards the transport and dials a replacement; the failed
// read itself is never retried.
type Bus struct {
	mu        sync.Mutex
	transport Transport
	dial      Dialer
	log       *logrus.Entry
}

// NewBus dials the initial transport and fails when the inverter cannot be reached.
func NewBus(ctx context.Context, dial Dialer, log *logrus.Entry) (*Bus, error) {
	t, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to inverter: %w", err)
	}
	return &Bus{transport: t, dial: dial, log: log}, nil
}

// ReadInstantaneousPower reads the AC power magnitude and its scale factor.
func (b *Bus) ReadInstantaneousPower(ctx context.Context) (ScaledRegisterValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(ctx); err != nil {
		return ScaledRegisterValue{}, err
	}
	regs, err := b.read(PowerRegister, PowerRegisterCount)
	if err != nil {
		return ScaledRegisterValue{}, b.fail(ctx, "power value", err)
	}

	return ScaledRegisterValue{
		Raw:   uint32(regs[0]),
		Scale: int16(regs[1]),
	}, nil
}

// ReadLifetimeProduction reads the 32-bit lifetime counter and its scale
// factor under one lock.
func (b *Bus) ReadLifetimeProduction(ctx context.Context) (ScaledRegisterValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(ctx); err != nil {
		return ScaledRegisterValue{}, err
	}
	regs, err := b.read(LifetimeRegister, LifetimeRegisterCount)
	if err != nil {
		return ScaledRegisterValue{}, b.fail(ctx, "production lifetime", err)
	}
	scale, err := b.read(LifetimeScaleRegister, 1)
	if err != nil {
		return ScaledRegisterValue{}, b.fail(ctx, "production lifetime scale", err)
	}

	return ScaledRegisterValue{
		Raw:   uint32(regs[0])<<16 | uint32(regs[1]),
		Scale: int16(scale[0]),
	}, nil
}

// Replace swaps in a new transport and closes the old one.
func (b *Bus) Replace(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replace(t)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == nil {
		return nil
	}
	err := b.transport.Close()
	b.transport = nil
	return err
}

// ready makes sure a transport is present before a read sequence. Its
// errors are returned as is, the transport is not replaced for them.
// Must be called with mu held.
func (b *Bus) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// A previous replacement dial failed, try again now.
	if b.transport == nil {
		t, err := b.dial(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModbusNotConnected, err)
		}
		b.transport = t
	}
	return nil
}

// read must be called with mu held, after ready.
func (b *Bus) read(address, quantity uint16) ([]uint16, error) {
	regs, err := b.transport.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	if len(regs) != int(quantity) {
		return nil, fmt.Errorf("unexpected register count at %d: got %d, want %d", address, len(regs), quantity)
	}
	return regs, nil
}

// fail replaces the transport and returns the error for the caller. Must be called with mu held.
func (b *Bus) fail(ctx context.Context, what string, cause error) error {
	b.log.WithError(cause).Errorf("failed to read %s, reconnecting to inverter", what)

	t, err := b.dial(ctx)
	if err != nil {
		b.log.WithError(err).Warn("reconnect failed, will dial again on next read")
		t = nil
	}
	b.replace(t)

	return fmt.Errorf("%w: %s: %w", ErrBusRead, what, cause)
}

func (b *Bus) replace(t Transport) {
	if b.transport != nil {
		if err := b.transport.Close(); err != nil {
			b.log.WithError(err).Debug("closing discarded transport")
		}
	}
	b.transport = t
}
