package transport

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ayusman/ivory/internal/calibration"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/observe"
)

// Sender delivers packets to one kind of receiver.
type Sender interface {
	Send(ctx context.Context, p Packet) error
	Name() string
}

// Fanout sends every packet to all of its senders.
type Fanout []Sender

// Send delivers p to each sender and joins their errors.
func (f Fanout) Send(ctx context.Context, p Packet) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name returns "fanout".
func (f Fanout) Name() string { return "fanout" }

// Dispatcher hands results to a Sender without waiting for delivery.
// Each Dispatch spawns its own task; tasks are never cancelled or ordered,
// so delivery is at most once and may arrive out of order.
type Dispatcher struct {
	sender  Sender
	metrics *observe.Metrics
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil metrics uses the global provider.
func NewDispatcher(s Sender, m *observe.Metrics) *Dispatcher {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Dispatcher{sender: s, metrics: m}
}

// Dispatch sends r in the background and returns immediately.
func (d *Dispatcher) Dispatch(r keyboard.MatchResult) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(context.Background(), KeysPacket(r))
	}()
}

// SignalError sends a calibration error code and waits for delivery.
func (d *Dispatcher) SignalError(code calibration.Code) error {
	return d.send(context.Background(), ErrorPacket(int(code)))
}

// Wait blocks until every dispatched packet has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, p Packet) error {
	err := d.sender.Send(ctx, p)
	if err != nil {
		log.Printf("transport: %s send %s: %v", d.sender.Name(), p.Kind, err)
		d.metrics.RecordTransmitError(ctx, d.sender.Name())
	}
	return err
}
