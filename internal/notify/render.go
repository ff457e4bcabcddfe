// Package notify turns change events into rendered display units and
// delivers them to a messaging sink in bounded, paced batches.
package notify

import (
	"fmt"
	"strings"
	"time"
	"workshopwatch/internal/diff"
)

// Unit is one sink-ready rendering of a change event.
type Unit struct {
	Heading  string
	Body     string
	Color    int
	ImageURL string
	Footer   string
}

var kindHeadings = map[diff.Kind]string{
	diff.KindNew:             "New item: %s",
	diff.KindRemoved:         "Removed from collection: %s",
	diff.KindListed:          "Listed again: %s",
	diff.KindUnlisted:        "Unlisted: %s",
	diff.KindUnavailable:     "No longer available: %s",
	diff.KindUpdated:         "Updated: %s",
	diff.KindTitleChanged:    "Renamed: %s",
	diff.KindTitleAndUpdated: "Renamed and updated: %s",
}

var kindColors = map[diff.Kind]int{
	diff.KindNew:             0x2ecc71,
	diff.KindRemoved:         0xe74c3c,
	diff.KindListed:          0x1abc9c,
	diff.KindUnlisted:        0xe67e22,
	diff.KindUnavailable:     0x992d22,
	diff.KindUpdated:         0x3498db,
	diff.KindTitleChanged:    0x9b59b6,
	diff.KindTitleAndUpdated: 0x8e44ad,
}

type Renderer struct {
	pageBaseUrl    string
	collectionName string
}

type RendererOptions struct {
	// base url for item page links, defaults to the public site
	PageBaseUrl string
	// used as the unit footer when present
	CollectionName string
}

const defaultPageBaseUrl = "https://steamcommunity.com"

func NewRenderer(opts RendererOptions) Renderer {
	if opts.PageBaseUrl == "" {
		opts.PageBaseUrl = defaultPageBaseUrl
	}
	return Renderer{
		pageBaseUrl:    opts.PageBaseUrl,
		collectionName: opts.CollectionName,
	}
}

func formatTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2 Jan 2006 15:04 MST")
}

func (r Renderer) Render(ev diff.Event) Unit {
	title := ev.NewTitle
	if title == "" {
		title = ev.OldTitle
	}

	var lines []string
	switch ev.Kind {
	case diff.KindNew:
		lines = append(lines, "Added to the collection.")
	case diff.KindRemoved:
		lines = append(lines, "No longer part of the collection.")
	case diff.KindListed:
		lines = append(lines, "Back in the catalog listing.")
	case diff.KindUnlisted:
		lines = append(lines, "No longer publicly listed, still reachable by direct link.")
	case diff.KindUnavailable:
		lines = append(lines, "The item page is no longer accessible.")
	case diff.KindUpdated:
		lines = append(lines, fmt.Sprintf("Updated %s → %s", formatTime(ev.OldTime), formatTime(ev.NewTime)))
	case diff.KindTitleChanged:
		lines = append(lines, fmt.Sprintf("Renamed from %q to %q", ev.OldTitle, ev.NewTitle))
	case diff.KindTitleAndUpdated:
		lines = append(lines, fmt.Sprintf("Renamed from %q to %q", ev.OldTitle, ev.NewTitle))
		lines = append(lines, fmt.Sprintf("Updated %s → %s", formatTime(ev.OldTime), formatTime(ev.NewTime)))
	}
	lines = append(lines, fmt.Sprintf("%s/sharedfiles/filedetails/?id=%s", r.pageBaseUrl, ev.ID))

	return Unit{
		Heading:  fmt.Sprintf(kindHeadings[ev.Kind], title),
		Body:     strings.Join(lines, "\n"),
		Color:    kindColors[ev.Kind],
		ImageURL: ev.PreviewURL,
		Footer:   r.collectionName,
	}
}

func (r Renderer) RenderAll(events []diff.Event) []Unit {
	units := make([]Unit, len(events))
	for i, ev := range events {
		units[i] = r.Render(ev)
	}
	return units
}
