// Package fetch retrieves item metadata for a full membership list:
// identifiers are partitioned into fixed-size batches, batches run
// through a bounded worker pool, and any item the catalog denies is
// resolved through the fallback scraper inside its batch's worker.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"workshopwatch/internal/catalog"
	"workshopwatch/internal/snapshot"
)

const (
	MinBatchSize = 1
	MaxBatchSize = 50
)

// Detailer is the structured catalog detail query.
type Detailer interface {
	GetDetails(ctx context.Context, ids []string) ([]catalog.ItemDetail, error)
}

// Resolver is the fallback page scrape for a single denied item.
type Resolver interface {
	Resolve(ctx context.Context, id string) snapshot.Item
}

type Options struct {
	// identifiers per detail request, defaults to 20
	BatchSize int
	// batches in flight at once, defaults to 4
	Concurrency int
}

func (o Options) normalize() (Options, error) {
	if o.BatchSize == 0 {
		o.BatchSize = 20
	}
	if o.BatchSize < MinBatchSize || o.BatchSize > MaxBatchSize {
		return o, fmt.Errorf("batch size %d out of range [%d, %d]", o.BatchSize, MinBatchSize, MaxBatchSize)
	}
	if o.Concurrency == 0 {
		o.Concurrency = 4
	}
	if o.Concurrency < 1 {
		return o, fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	return o, nil
}

// Partition splits ids into contiguous batches of at most size,
// preserving order. Concatenating the result reproduces the input.
func Partition(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

type job struct {
	index int
	ids   []string
}

// FetchAll retrieves metadata for every identifier. The result is
// keyed by original batch index so callers can reconstruct global
// order regardless of completion order. Batches that fail at the
// transport level are missing from the map, their items are dropped
// for this run.
func FetchAll(ctx context.Context, detailer Detailer, fallback Resolver, ids []string, opts Options) (map[int][]snapshot.Item, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	batches := Partition(ids, opts.BatchSize)
	jobs := make(chan job)

	var mu sync.Mutex
	results := make(map[int][]snapshot.Item, len(batches))

	wg := sync.WaitGroup{}
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				items, err := fetchBatch(ctx, detailer, fallback, j.ids)
				if err != nil {
					// deliberate: a dropped batch shows up as removals
					// in the next diff rather than aborting the run
					slog.WarnContext(ctx, "dropping batch after transport failure",
						"batch", j.index,
						"size", len(j.ids),
						"err", err,
					)
					continue
				}
				mu.Lock()
				results[j.index] = items
				mu.Unlock()
			}
		}()
	}

	for i, b := range batches {
		jobs <- job{index: i, ids: b}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// one structured request for the batch, then sequential fallback
// resolutions for whatever the catalog denied
func fetchBatch(ctx context.Context, detailer Detailer, fallback Resolver, ids []string) ([]snapshot.Item, error) {
	details, err := detailer.GetDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	byId := make(map[string]catalog.ItemDetail, len(details))
	for _, d := range details {
		byId[d.ID] = d
	}

	items := make([]snapshot.Item, 0, len(ids))
	for _, id := range ids {
		detail, ok := byId[id]
		if ok && detail.Result == catalog.ResultOK {
			items = append(items, snapshot.Item{
				ID:          id,
				Title:       detail.Title,
				TimeUpdated: detail.TimeUpdated,
				Channel:     snapshot.ChannelPrimary,
				PreviewURL:  detail.PreviewURL,
				Result:      detail.Result,
			})
			continue
		}

		slog.DebugContext(ctx, "item denied by catalog, scraping instead",
			"id", id,
			"result", detail.Result,
		)
		item := fallback.Resolve(ctx, id)
		item.Result = detail.Result
		items = append(items, item)
	}
	return items, nil
}
