// Package snapshot holds the capture data model and its persistence:
// one full, timestamped record of a collection's membership and
// metadata, replaced wholesale on every successful run.
package snapshot

// Channel tags which retrieval path produced an item's metadata.
type Channel string

const (
	// the structured catalog API
	ChannelPrimary Channel = "api"
	// the fallback page scrape
	ChannelFallback Channel = "scrape"
	// neither path could retrieve the item
	ChannelUnavailable Channel = "unavailable"
	// recorded by older captures that predate channel tagging
	ChannelUnknown Channel = "unknown"
)

type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// epoch seconds, 0 when the update time is not known
	TimeUpdated int64   `json:"time_updated,omitempty"`
	Channel     Channel `json:"channel"`
	PreviewURL  string  `json:"preview_url,omitempty"`
	// raw result code from the catalog service, 0 for items that
	// never went through the primary channel
	Result int `json:"result,omitempty"`
}

type Snapshot struct {
	CollectionID string `json:"collection_id"`
	Name         string `json:"name,omitempty"`
	CapturedAt   int64  `json:"captured_at"`
	Items        []Item `json:"items"`
}

// Index returns the items keyed by identifier.
func (s Snapshot) Index() map[string]Item {
	m := make(map[string]Item, len(s.Items))
	for _, item := range s.Items {
		m[item.ID] = item
	}
	return m
}
