package notify

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	batches [][]Unit
	failOn  map[int]bool
}

func (s *recordingSink) Deliver(ctx context.Context, units []Unit) error {
	call := len(s.batches)
	s.batches = append(s.batches, units)
	if s.failOn[call] {
		return fmt.Errorf("sink rejected batch %d", call)
	}
	return nil
}

func units(n int) []Unit {
	out := make([]Unit, n)
	for i := range out {
		out[i] = Unit{Heading: strconv.Itoa(i)}
	}
	return out
}

func TestDispatchBatchSizes(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherOptions{BatchSize: 10, Pause: time.Millisecond})

	failed := d.Dispatch(context.Background(), units(23))
	require.Zero(t, failed)
	require.Len(t, sink.batches, 3)
	require.Len(t, sink.batches[0], 10)
	require.Len(t, sink.batches[1], 10)
	require.Len(t, sink.batches[2], 3)

	// order preserved across batches
	require.Equal(t, "0", sink.batches[0][0].Heading)
	require.Equal(t, "10", sink.batches[1][0].Heading)
	require.Equal(t, "22", sink.batches[2][2].Heading)
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	sink := &recordingSink{failOn: map[int]bool{0: true}}
	d := NewDispatcher(sink, DispatcherOptions{BatchSize: 5, Pause: time.Millisecond})

	failed := d.Dispatch(context.Background(), units(12))
	require.Equal(t, 1, failed)
	require.Len(t, sink.batches, 3)
}

func TestDispatchPausesBetweenBatches(t *testing.T) {
	sink := &recordingSink{}
	pause := 50 * time.Millisecond
	d := NewDispatcher(sink, DispatcherOptions{BatchSize: 10, Pause: pause})

	start := time.Now()
	failed := d.Dispatch(context.Background(), units(23))
	elapsed := time.Since(start)

	require.Zero(t, failed)
	require.Len(t, sink.batches, 3)
	// three batches mean two pauses; no pause before the first
	require.GreaterOrEqual(t, elapsed, 2*pause)
}

func TestDispatchEmpty(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherOptions{BatchSize: 10, Pause: time.Millisecond})

	failed := d.Dispatch(context.Background(), nil)
	require.Zero(t, failed)
	require.Empty(t, sink.batches)
}
