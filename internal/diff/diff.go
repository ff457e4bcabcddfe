// Package diff compares two captures of the same collection and
// classifies every difference into exactly one change kind. The
// classification is deliberately ordered: availability loss dominates
// content changes, and a combined title+timestamp change is reported
// once, not as two events.
package diff

import (
	"workshopwatch/internal/fallback"
	"workshopwatch/internal/snapshot"
)

type Kind string

const (
	KindNew             Kind = "new"
	KindRemoved         Kind = "removed"
	KindListed          Kind = "listed"
	KindUnlisted        Kind = "unlisted"
	KindUnavailable     Kind = "unavailable"
	KindUpdated         Kind = "updated"
	KindTitleChanged    Kind = "title-changed"
	KindTitleAndUpdated Kind = "title-and-updated"
)

type Event struct {
	ID   string
	Kind Kind

	OldTitle string
	NewTitle string
	// epoch seconds, 0 = unknown
	OldTime int64
	NewTime int64

	OldChannel snapshot.Channel
	NewChannel snapshot.Channel

	// the new capture's preview when present, otherwise the old one
	PreviewURL string
}

type Counts map[Kind]int

// Diff produces one ordered event list: events for items present in
// the new capture first (in capture order), then removals in the old
// capture's order. A nil previous capture is a first run, there is
// nothing to compare against and zero events come back.
func Diff(prev *snapshot.Snapshot, next snapshot.Snapshot) ([]Event, Counts) {
	counts := Counts{}
	if prev == nil {
		return nil, counts
	}

	oldIndex := prev.Index()
	newIndex := next.Index()

	var events []Event
	emit := func(ev Event) {
		events = append(events, ev)
		counts[ev.Kind]++
	}

	for _, item := range next.Items {
		old, existed := oldIndex[item.ID]
		if !existed {
			emit(Event{
				ID:         item.ID,
				Kind:       KindNew,
				NewTitle:   item.Title,
				NewTime:    item.TimeUpdated,
				NewChannel: item.Channel,
				PreviewURL: item.PreviewURL,
			})
			continue
		}

		kind, ok := classifyPair(old, item)
		if !ok {
			continue
		}
		preview := item.PreviewURL
		if preview == "" {
			preview = old.PreviewURL
		}
		emit(Event{
			ID:         item.ID,
			Kind:       kind,
			OldTitle:   old.Title,
			NewTitle:   item.Title,
			OldTime:    old.TimeUpdated,
			NewTime:    item.TimeUpdated,
			OldChannel: old.Channel,
			NewChannel: item.Channel,
			PreviewURL: preview,
		})
	}

	for _, old := range prev.Items {
		if _, stillThere := newIndex[old.ID]; stillThere {
			continue
		}
		emit(Event{
			ID:         old.ID,
			Kind:       KindRemoved,
			OldTitle:   old.Title,
			OldTime:    old.TimeUpdated,
			OldChannel: old.Channel,
			PreviewURL: old.PreviewURL,
		})
	}

	return events, counts
}

// classifyPair maps an item present in both captures to at most one
// change kind. Channel transitions are checked first, in order; equal
// channels fall through to the content comparison.
func classifyPair(old, next snapshot.Item) (Kind, bool) {
	if old.Channel != next.Channel {
		return classifyTransition(old, next)
	}
	return classifyContent(old, next)
}

func classifyTransition(old, next snapshot.Item) (Kind, bool) {
	switch {
	case next.Channel == snapshot.ChannelPrimary:
		// came (back) into the structured catalog
		return KindListed, true

	case next.Channel == snapshot.ChannelUnavailable,
		next.Channel == snapshot.ChannelUnknown,
		next.Channel == "":
		return KindUnavailable, true

	case next.Channel == snapshot.ChannelFallback:
		// only reachable by scraping now; when the scrape came back
		// with the error page heading the item is actually gone
		if next.Title == fallback.ErrorPageHeading {
			return KindUnavailable, true
		}
		return KindUnlisted, true
	}

	return "", false
}

func classifyContent(old, next snapshot.Item) (Kind, bool) {
	timeDiffers := old.TimeUpdated != 0 && next.TimeUpdated != 0 &&
		old.TimeUpdated != next.TimeUpdated
	titleDiffers := old.Title != next.Title
	if !timeDiffers && !titleDiffers {
		return "", false
	}

	// whatever else changed, the error heading means the item is gone
	if next.Title == fallback.ErrorPageHeading {
		return KindUnavailable, true
	}

	switch {
	case timeDiffers && titleDiffers:
		return KindTitleAndUpdated, true
	case timeDiffers:
		return KindUpdated, true
	case titleDiffers:
		return KindTitleChanged, true
	}
	return "", false
}
