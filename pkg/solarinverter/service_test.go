package solarinverter

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeTransport struct {
	mu     sync.Mutex
	regs   map[uint16][]uint16
	fail   bool
	closed bool
	reads  []uint16
}

func (f *fakeTransport) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, address)
	if f.fail {
		return nil, errors.New("broken pipe")
	}
	r := f.regs[address]
	return r[:min(len(r), int(quantity))], nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func healthyTransport() *fakeTransport {
	return &fakeTransport{regs: map[uint16][]uint16{
		PowerRegister:         {1500, 0xFFFF}, // scale -1
		LifetimeRegister:      {1, 0},
		LifetimeScaleRegister: {0},
	}}
}

// fakeDialer hands out the given transports in order.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	calls      int
}

func (d *fakeDialer) dial(ctx context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.transports) == 0 {
		return nil, errors.New("no route to host")
	}
	t := d.transports[0]
	d.transports = d.transports[1:]
	return t, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestScaledRegisterValue(t *testing.T) {
	power := ScaledRegisterValue{Raw: 1500, Scale: -1}
	if power.Production() != 150 {
		t.Fatalf("Production() = %d, want 150", power.Production())
	}

	lifetime := ScaledRegisterValue{Raw: 65536, Scale: -2}
	if lifetime.Lifetime() != 0 {
		t.Fatalf("Lifetime() = %d, want 0 (scale floored before multiply)", lifetime.Lifetime())
	}
	if got := (ScaledRegisterValue{Raw: 65536, Scale: 1}).Lifetime(); got != 655360 {
		t.Fatalf("Lifetime() = %d, want 655360", got)
	}
}

func TestBus_Reads(t *testing.T) {
	d := &fakeDialer{transports: []*fakeTransport{healthyTransport()}}
	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatalf("NewBus() err=%v", err)
	}

	power, err := bus.ReadInstantaneousPower(context.Background())
	if err != nil {
		t.Fatalf("ReadInstantaneousPower() err=%v", err)
	}
	if power != (ScaledRegisterValue{Raw: 1500, Scale: -1}) {
		t.Fatalf("power = %+v", power)
	}

	lifetime, err := bus.ReadLifetimeProduction(context.Background())
	if err != nil {
		t.Fatalf("ReadLifetimeProduction() err=%v", err)
	}
	if lifetime.Raw != 65536 || lifetime.Scale != 0 {
		t.Fatalf("lifetime = %+v, want raw 65536 scale 0", lifetime)
	}
}

func TestBus_FailureReplacesTransport(t *testing.T) {
	broken := healthyTransport()
	broken.fail = true
	replacement := healthyTransport()
	d := &fakeDialer{transports: []*fakeTransport{broken, replacement}}

	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	// First worker hits the broken transport.
	_, err = bus.ReadLifetimeProduction(context.Background())
	if !errors.Is(err, ErrBusRead) {
		t.Fatalf("err = %v, want ErrBusRead", err)
	}
	if !broken.closed {
		t.Fatalf("broken transport was not discarded")
	}
	if len(broken.reads) != 1 {
		t.Fatalf("failed read was retried: %v", broken.reads)
	}

	// Next worker succeeds against the replacement.
	power, err := bus.ReadInstantaneousPower(context.Background())
	if err != nil {
		t.Fatalf("read after replacement err=%v", err)
	}
	if power.Production() != 150 {
		t.Fatalf("power = %d", power.Production())
	}
	if d.calls != 2 {
		t.Fatalf("dial calls = %d, want 2", d.calls)
	}
}

func TestBus_RedialsLazilyWhenReplacementFails(t *testing.T) {
	broken := healthyTransport()
	broken.fail = true
	d := &fakeDialer{transports: []*fakeTransport{broken}}

	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bus.ReadInstantaneousPower(context.Background()); !errors.Is(err, ErrBusRead) {
		t.Fatalf("err = %v, want ErrBusRead", err)
	}

	// Inverter is still down: the next read reports it without a transport.
	if _, err := bus.ReadInstantaneousPower(context.Background()); !errors.Is(err, ErrModbusNotConnected) {
		t.Fatalf("err = %v, want ErrModbusNotConnected", err)
	}

	// Inverter back up.
	d.mu.Lock()
	d.transports = append(d.transports, healthyTransport())
	d.mu.Unlock()
	if _, err := bus.ReadInstantaneousPower(context.Background()); err != nil {
		t.Fatalf("read after recovery err=%v", err)
	}
}

func TestBus_ShortResponseIsAFailure(t *testing.T) {
	short := &fakeTransport{regs: map[uint16][]uint16{PowerRegister: {1500, 0}}}
	d := &fakeDialer{transports: []*fakeTransport{short, healthyTransport()}}
	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Scale register 95 is missing from the short transport.
	short.regs[LifetimeRegister] = []uint16{0, 1}
	short.regs[LifetimeScaleRegister] = []uint16{}
	_, err = bus.ReadLifetimeProduction(context.Background())
	if !errors.Is(err, ErrBusRead) {
		t.Fatalf("err = %v, want ErrBusRead", err)
	}
}

func TestBus_LockCoversWholeSequence(t *testing.T) {
	tr := healthyTransport()
	d := &fakeDialer{transports: []*fakeTransport{tr}}
	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := bus.ReadLifetimeProduction(context.Background()); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := bus.ReadInstantaneousPower(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Every lifetime read must be directly followed by its scale read.
	for i, addr := range tr.reads {
		if addr == LifetimeRegister {
			if i+1 >= len(tr.reads) || tr.reads[i+1] != LifetimeScaleRegister {
				t.Fatalf("lifetime read interleaved: %v", tr.reads)
			}
		}
	}
}

func TestDecodeRegisters(t *testing.T) {
	regs, err := decodeRegisters([]byte{0x05, 0xDC, 0xFF, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if regs[0] != 1500 || int16(regs[1]) != -1 {
		t.Fatalf("regs = %v", regs)
	}
	if _, err := decodeRegisters([]byte{0x01}); err == nil {
		t.Fatalf("expected error for odd payload")
	}
}

func TestBus_ReplaceClosesOld(t *testing.T) {
	first := healthyTransport()
	d := &fakeDialer{transports: []*fakeTransport{first}}
	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	bus.Replace(healthyTransport())
	if !first.closed {
		t.Fatalf("old transport not closed")
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBus_CancelledContextKeepsTransport(t *testing.T) {
	tr := healthyTransport()
	d := &fakeDialer{transports: []*fakeTransport{tr, healthyTransport()}}
	bus, err := NewBus(context.Background(), d.dial, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = bus.ReadInstantaneousPower(ctx)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrBusRead) {
		t.Fatalf("err = %v, want plain context.Canceled", err)
	}
	_, err = bus.ReadLifetimeProduction(ctx)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrBusRead) {
		t.Fatalf("err = %v, want plain context.Canceled", err)
	}
	if tr.closed || d.calls != 1 || len(tr.reads) != 0 {
		t.Fatalf("healthy transport touched: closed=%v dials=%d reads=%v", tr.closed, d.calls, tr.reads)
	}

	if _, err := bus.ReadInstantaneousPower(context.Background()); err != nil {
		t.Fatalf("read after cancelled call err=%v", err)
	}
}
