// Package monitor wires the pipeline together: resolve membership,
// fetch details, assemble and persist the capture, diff it against the
// previous one and dispatch notifications.
package monitor

import (
	"context"
	"log/slog"
	"time"
	"workshopwatch/internal/catalog"
	"workshopwatch/internal/diff"
	"workshopwatch/internal/fetch"
	"workshopwatch/internal/notify"
	"workshopwatch/internal/snapshot"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("monitor")

// Catalog is the primary structured channel.
type Catalog interface {
	ResolveCollection(ctx context.Context, id string) (catalog.Collection, error)
	GetDetails(ctx context.Context, ids []string) ([]catalog.ItemDetail, error)
}

// Store persists one capture per collection, replace on write.
type Store interface {
	Load(ctx context.Context, collectionID string) (*snapshot.Snapshot, error)
	Save(ctx context.Context, snap snapshot.Snapshot) error
}

type Runner struct {
	catalog    Catalog
	fallback   fetch.Resolver
	store      Store
	dispatcher *notify.Dispatcher
	opts       Options
}

type Options struct {
	Collection  string
	BatchSize   int
	Concurrency int
	// base url used for item links in rendered notifications
	PageBaseUrl string
}

func New(cat Catalog, fallback fetch.Resolver, store Store, dispatcher *notify.Dispatcher, opts Options) *Runner {
	return &Runner{
		catalog:    cat,
		fallback:   fallback,
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

type Report struct {
	ItemCount    int
	Tally        snapshot.Tally
	EventCounts  diff.Counts
	EventTotal   int
	FailedUnits  int
	FirstRun     bool
	DroppedItems int
}

// Run executes one full capture/diff/notify cycle. Only membership
// resolution failures are terminal, everything downstream degrades
// into the report.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "monitor:Run")
	defer span.End()

	collection, err := r.catalog.ResolveCollection(ctx, r.opts.Collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve collection")
		return Report{}, err
	}
	slog.InfoContext(ctx, "resolved collection",
		"collection", collection.ID,
		"name", collection.Name,
		"items", len(collection.Children),
	)

	prev, err := r.store.Load(ctx, collection.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load previous capture")
		return Report{}, err
	}

	batches, err := fetch.FetchAll(ctx, r.catalog, r.fallback, collection.Children, fetch.Options{
		BatchSize:   r.opts.BatchSize,
		Concurrency: r.opts.Concurrency,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad fetch options")
		return Report{}, err
	}

	snap, tally := snapshot.Assemble(collection.ID, collection.Name, time.Now(), batches)
	err = r.store.Save(ctx, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist capture")
		return Report{}, err
	}

	report := Report{
		ItemCount:    len(snap.Items),
		Tally:        tally,
		FirstRun:     prev == nil,
		DroppedItems: len(collection.Children) - len(snap.Items),
	}
	slog.InfoContext(ctx, "capture persisted",
		"items", report.ItemCount,
		"api", tally.Primary,
		"scraped", tally.Fallback,
		"unavailable", tally.Unavailable,
		"dropped", report.DroppedItems,
	)

	if prev == nil {
		slog.InfoContext(ctx, "first capture for collection, nothing to compare against")
		return report, nil
	}

	events, counts := diff.Diff(prev, snap)
	report.EventCounts = counts
	report.EventTotal = len(events)
	for kind, n := range counts {
		slog.InfoContext(ctx, "classified changes", "kind", string(kind), "count", n)
	}
	if len(events) == 0 {
		slog.InfoContext(ctx, "no changes since previous capture")
		return report, nil
	}

	renderer := notify.NewRenderer(notify.RendererOptions{
		PageBaseUrl:    r.opts.PageBaseUrl,
		CollectionName: collection.Name,
	})
	report.FailedUnits = r.dispatcher.Dispatch(ctx, renderer.RenderAll(events))

	return report, nil
}

// Watch runs cycles forever at the given interval until the context
// is cancelled. A failed cycle is logged and the next one still runs.
func (r *Runner) Watch(ctx context.Context, interval time.Duration) {
	for {
		_, err := r.Run(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "monitor cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
