package snapshot

import (
	"sort"
	"time"
)

// Tally counts items per retrieval channel for run reporting.
type Tally struct {
	Primary     int
	Fallback    int
	Unavailable int
	Unknown     int
}

func (t *Tally) count(c Channel) {
	switch c {
	case ChannelPrimary:
		t.Primary++
	case ChannelFallback:
		t.Fallback++
	case ChannelUnavailable:
		t.Unavailable++
	default:
		t.Unknown++
	}
}

// Assemble merges per-batch results into one snapshot, in original
// batch order. Batches dropped by transport failures are simply
// missing keys, their items do not appear in the result. This is a
// pure reduction, no comparison or classification happens here.
func Assemble(collectionID, name string, capturedAt time.Time, batches map[int][]Item) (Snapshot, Tally) {
	indices := make([]int, 0, len(batches))
	for idx := range batches {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var tally Tally
	var items []Item
	for _, idx := range indices {
		for _, item := range batches[idx] {
			tally.count(item.Channel)
			items = append(items, item)
		}
	}

	return Snapshot{
		CollectionID: collectionID,
		Name:         name,
		CapturedAt:   capturedAt.Unix(),
		Items:        items,
	}, tally
}
