package fetch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"workshopwatch/internal/catalog"
	"workshopwatch/internal/snapshot"

	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	cases := []struct {
		n       int
		size    int
		batches int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{23, 10, 3},
		{50, 7, 8},
	}

	for _, test := range cases {
		ids := make([]string, test.n)
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}

		batches := Partition(ids, test.size)
		require.Len(t, batches, test.batches, "n=%d size=%d", test.n, test.size)

		flat := []string{}
		for _, b := range batches {
			require.LessOrEqual(t, len(b), test.size)
			flat = append(flat, b...)
		}
		require.Equal(t, ids, flat, "n=%d size=%d", test.n, test.size)
	}
}

type fakeDetailer struct {
	mu       sync.Mutex
	calls    int
	denied   map[string]bool
	failFor  map[string]bool
	inflight int
	peak     int
}

func (f *fakeDetailer) GetDetails(ctx context.Context, ids []string) ([]catalog.ItemDetail, error) {
	f.mu.Lock()
	f.calls++
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	details := make([]catalog.ItemDetail, 0, len(ids))
	for _, id := range ids {
		if f.failFor[id] {
			return nil, fmt.Errorf("transport failure")
		}
		result := catalog.ResultOK
		if f.denied[id] {
			result = catalog.ResultFileNotFound
		}
		details = append(details, catalog.ItemDetail{
			ID:          id,
			Result:      result,
			Title:       "title " + id,
			TimeUpdated: 1000,
		})
	}
	return details, nil
}

type fakeResolver struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeResolver) Resolve(ctx context.Context, id string) snapshot.Item {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	return snapshot.Item{
		ID:      id,
		Title:   "scraped " + id,
		Channel: snapshot.ChannelFallback,
	}
}

func TestFetchAllReconstructsOrder(t *testing.T) {
	ids := make([]string, 47)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	detailer := &fakeDetailer{}
	resolver := &fakeResolver{}

	results, err := FetchAll(context.Background(), detailer, resolver, ids, Options{
		BatchSize:   5,
		Concurrency: 3,
	})
	require.NoError(t, err)
	require.Len(t, results, 10)
	require.Equal(t, 10, detailer.calls)
	require.LessOrEqual(t, detailer.peak, 3)

	var flat []string
	for i := 0; i < 10; i++ {
		batch, ok := results[i]
		require.True(t, ok, "batch %d missing", i)
		for _, item := range batch {
			require.Equal(t, snapshot.ChannelPrimary, item.Channel)
			flat = append(flat, item.ID)
		}
	}
	require.Equal(t, ids, flat)
}

func TestFetchAllDeniedItemsGoThroughFallback(t *testing.T) {
	detailer := &fakeDetailer{denied: map[string]bool{"b": true}}
	resolver := &fakeResolver{}

	results, err := FetchAll(context.Background(), detailer, resolver, []string{"a", "b", "c"}, Options{
		BatchSize:   3,
		Concurrency: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, resolver.ids)

	items := results[0]
	require.Len(t, items, 3)
	require.Equal(t, snapshot.ChannelPrimary, items[0].Channel)
	require.Equal(t, snapshot.ChannelFallback, items[1].Channel)
	require.Equal(t, "scraped b", items[1].Title)
	require.Equal(t, catalog.ResultFileNotFound, items[1].Result)
	require.Equal(t, snapshot.ChannelPrimary, items[2].Channel)
}

func TestFetchAllDropsFailedBatches(t *testing.T) {
	detailer := &fakeDetailer{failFor: map[string]bool{"c": true}}
	resolver := &fakeResolver{}

	results, err := FetchAll(context.Background(), detailer, resolver, []string{"a", "b", "c", "d"}, Options{
		BatchSize:   2,
		Concurrency: 2,
	})
	require.NoError(t, err)

	// batch 1 (c, d) failed at the transport level and is gone
	require.Len(t, results, 1)
	require.Contains(t, results, 0)
	require.Empty(t, resolver.ids)
}

func TestFetchAllRejectsBadOptions(t *testing.T) {
	detailer := &fakeDetailer{}
	resolver := &fakeResolver{}

	_, err := FetchAll(context.Background(), detailer, resolver, []string{"a"}, Options{BatchSize: 51})
	require.Error(t, err)

	_, err = FetchAll(context.Background(), detailer, resolver, []string{"a"}, Options{Concurrency: -1})
	require.Error(t, err)
}
