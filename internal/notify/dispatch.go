package notify

import (
	"context"
	"log/slog"
	"time"
)

// Sink accepts one bounded batch of rendered units per call. Batch
// sizing and pacing are the dispatcher's job, anything past accept or
// reject is the sink's own business.
type Sink interface {
	Deliver(ctx context.Context, units []Unit) error
}

type Dispatcher struct {
	sink      Sink
	batchSize int
	pause     time.Duration
}

type DispatcherOptions struct {
	// units per delivery, defaults to 10
	BatchSize int
	// wait between deliveries, defaults to 2s
	Pause time.Duration
}

func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Pause == 0 {
		opts.Pause = time.Second * 2
	}
	return &Dispatcher{
		sink:      sink,
		batchSize: opts.BatchSize,
		pause:     opts.Pause,
	}
}

// Dispatch delivers the units in order, batch by batch, pausing
// between deliveries. A failed delivery is logged and skipped, the
// remaining batches are still attempted. Returns how many batches
// failed.
func (d *Dispatcher) Dispatch(ctx context.Context, units []Unit) int {
	failed := 0
	for start := 0; start < len(units); start += d.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return failed + (len(units)-start+d.batchSize-1)/d.batchSize
			case <-time.After(d.pause):
			}
		}

		end := start + d.batchSize
		if end > len(units) {
			end = len(units)
		}

		err := d.sink.Deliver(ctx, units[start:end])
		if err != nil {
			slog.WarnContext(ctx, "notification batch delivery failed",
				"batch_start", start,
				"batch_size", end-start,
				"err", err,
			)
			failed++
		}
	}
	return failed
}
