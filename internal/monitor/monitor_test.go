package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"workshopwatch/internal/catalog"
	"workshopwatch/internal/notify"
	"workshopwatch/internal/snapshot"

	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	collection catalog.Collection
	resolveErr error
	details    map[string]catalog.ItemDetail
}

func (f *fakeCatalog) ResolveCollection(ctx context.Context, id string) (catalog.Collection, error) {
	if f.resolveErr != nil {
		return catalog.Collection{}, f.resolveErr
	}
	return f.collection, nil
}

func (f *fakeCatalog) GetDetails(ctx context.Context, ids []string) ([]catalog.ItemDetail, error) {
	details := make([]catalog.ItemDetail, 0, len(ids))
	for _, id := range ids {
		details = append(details, f.details[id])
	}
	return details, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, id string) snapshot.Item {
	return snapshot.Item{ID: id, Title: "scraped", Channel: snapshot.ChannelFallback}
}

type memStore struct {
	mu    sync.Mutex
	snaps map[string]snapshot.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: map[string]snapshot.Snapshot{}}
}

func (s *memStore) Load(ctx context.Context, collectionID string) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[collectionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *memStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.CollectionID] = snap
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]notify.Unit
}

func (s *recordingSink) Deliver(ctx context.Context, units []notify.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, units)
	return nil
}

func detail(id, title string, updated int64) catalog.ItemDetail {
	return catalog.ItemDetail{
		ID:          id,
		Result:      catalog.ResultOK,
		Title:       title,
		TimeUpdated: updated,
	}
}

func newTestRunner(cat *fakeCatalog, store Store, sink notify.Sink) *Runner {
	dispatcher := notify.NewDispatcher(sink, notify.DispatcherOptions{
		BatchSize: 10,
		Pause:     time.Millisecond,
	})
	return New(cat, fakeResolver{}, store, dispatcher, Options{
		Collection:  "7",
		BatchSize:   2,
		Concurrency: 2,
	})
}

func TestRunFullCycle(t *testing.T) {
	cat := &fakeCatalog{
		collection: catalog.Collection{
			ID:       "7",
			Name:     "Good Stuff",
			Children: []string{"a", "b", "c"},
		},
		details: map[string]catalog.ItemDetail{
			"a": detail("a", "Alpha", 100),
			"b": detail("b", "Beta", 100),
			"c": detail("c", "Gamma", 100),
		},
	}
	store := newMemStore()
	sink := &recordingSink{}
	runner := newTestRunner(cat, store, sink)

	ctx := context.Background()

	// first run: capture persisted, nothing to notify
	report, err := runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.FirstRun)
	require.Equal(t, 3, report.ItemCount)
	require.Equal(t, 3, report.Tally.Primary)
	require.Zero(t, report.EventTotal)
	require.Empty(t, sink.batches)

	saved, err := store.Load(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, []string{"a", "b", "c"}, itemIds(saved.Items))

	// second run: one update, one addition, one removal
	cat.collection.Children = []string{"a", "b", "d"}
	cat.details["a"] = detail("a", "Alpha", 200)
	cat.details["d"] = detail("d", "Delta", 100)

	report, err = runner.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.FirstRun)
	require.Equal(t, 3, report.EventTotal)
	require.Zero(t, report.FailedUnits)

	require.Len(t, sink.batches, 1)
	units := sink.batches[0]
	require.Len(t, units, 3)
	require.Equal(t, "Updated: Alpha", units[0].Heading)
	require.Equal(t, "New item: Delta", units[1].Heading)
	require.Equal(t, "Removed from collection: Gamma", units[2].Heading)
	require.Equal(t, "Good Stuff", units[0].Footer)
}

func TestRunTerminalResolutionFailure(t *testing.T) {
	cat := &fakeCatalog{resolveErr: fmt.Errorf("wrapped: %w", catalog.ErrCollectionPrivate)}
	store := newMemStore()
	runner := newTestRunner(cat, store, &recordingSink{})

	_, err := runner.Run(context.Background())
	require.ErrorIs(t, err, catalog.ErrCollectionPrivate)

	// nothing persisted for a terminal failure
	snap, err := store.Load(context.Background(), "7")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func itemIds(items []snapshot.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
