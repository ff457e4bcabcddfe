// Package fallback retrieves item metadata by scraping the public item
// page when the catalog API denies an item. It targets exactly one
// document shape and classifies every outcome into a snapshot record,
// a failed scrape never fails the run.
package fallback

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strconv"
	"time"
	"workshopwatch/internal/snapshot"
	"workshopwatch/lib/htmlutil"
	"workshopwatch/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

const (
	// fixed heading of the item-not-found error page, also used by the
	// differ to recognize availability loss
	ErrorPageHeading = "There was a problem accessing the item. Please try again."
	// title for items whose page exists but exposes no metadata
	RestrictedTitle = "Hidden or restricted item"
	// title for items that could not be retrieved at all
	UnreachableTitle = "Unavailable resource"

	// a page smaller than this carries no real item content
	minBodySize = 2048
)

const DefaultBaseUrl = "https://steamcommunity.com"

type Resolver struct {
	baseUrl string
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time
}

type ResolverOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to 30s
	Timeout time.Duration
	// courtesy spacing between page retrievals, defaults to 500ms
	Delay time.Duration
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.Delay == 0 {
		opts.Delay = time.Millisecond * 500
	}
	return &Resolver{
		baseUrl: opts.BaseUrl,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Every(opts.Delay), 1),
		now:     time.Now,
	}
}

// each item gets its own client: fresh cookie jar, randomized
// user-agent and browser fingerprint, to keep the scrape from looking
// like one long automated session
func (r *Resolver) newPageClient() (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(r.baseUrl)
	client.SetTimeout(r.timeout)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browser.Random())
	client.SetHeader("accept-language", "en-US,en;q=0.9")

	browserid, err := random.IntRange(100000000, 999999999)
	if err != nil {
		return nil, err
	}
	client.SetCookie(&http.Cookie{
		Name:  "browserid",
		Value: strconv.Itoa(browserid),
	})

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return r.limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "fallback/http")
	return client, nil
}

func unreachable(id string) snapshot.Item {
	return snapshot.Item{
		ID:      id,
		Title:   UnreachableTitle,
		Channel: snapshot.ChannelUnavailable,
	}
}

// Resolve performs the two-phase page retrieval for a single denied
// identifier: the first request establishes session cookies, the
// second fetches the actual document through the same jar. Every
// outcome degrades into a record, Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, id string) snapshot.Item {
	client, err := r.newPageClient()
	if err != nil {
		slog.WarnContext(ctx, "failed to build page client", "id", id, "err", err)
		return unreachable(id)
	}

	pageUrl := "/sharedfiles/filedetails/?id=" + id

	// session warm-up
	_, err = client.R().SetContext(ctx).Get(pageUrl)
	if err != nil {
		slog.WarnContext(ctx, "fallback warm-up failed", "id", id, "err", err)
		return unreachable(id)
	}

	res, err := client.R().SetContext(ctx).Get(pageUrl)
	if err != nil {
		slog.WarnContext(ctx, "fallback fetch failed", "id", id, "err", err)
		return unreachable(id)
	}

	return r.classify(ctx, id, res.Body())
}

var errorPageExpr = regexp.MustCompile(`(?i)there was a problem accessing the item`)

func (r *Resolver) classify(ctx context.Context, id string, body []byte) snapshot.Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse item page", "id", id, "err", err)
		return unreachable(id)
	}

	if errorPageExpr.Match(body) {
		return snapshot.Item{
			ID:      id,
			Title:   ErrorPageHeading,
			Channel: snapshot.ChannelUnavailable,
		}
	}

	title := extractTitle(doc)
	preview := extractPreview(doc)
	updated := r.extractTimeUpdated(doc, body)

	if title != "" {
		return snapshot.Item{
			ID:          id,
			Title:       title,
			TimeUpdated: updated,
			Channel:     snapshot.ChannelFallback,
			PreviewURL:  preview,
		}
	}

	// a real page with no title pattern means the item exists but is
	// access-restricted
	if len(body) > minBodySize {
		return snapshot.Item{
			ID:      id,
			Title:   RestrictedTitle,
			Channel: snapshot.ChannelFallback,
		}
	}

	return snapshot.Item{
		ID:      id,
		Title:   ErrorPageHeading,
		Channel: snapshot.ChannelUnavailable,
	}
}

const pageTitlePrefix = "Steam Workshop::"

func extractTitle(doc *goquery.Document) string {
	sel := doc.Find("div.workshopItemTitle").First()
	if len(sel.Nodes) > 0 {
		title := htmlutil.NormalizeSpace(htmlutil.GetText(sel.Nodes[0]))
		if title != "" {
			return title
		}
	}

	heading := htmlutil.NormalizeSpace(doc.Find("head title").First().Text())
	if len(heading) > len(pageTitlePrefix) && heading[:len(pageTitlePrefix)] == pageTitlePrefix {
		return htmlutil.NormalizeSpace(heading[len(pageTitlePrefix):])
	}

	return ""
}

func extractPreview(doc *goquery.Document) string {
	href, _ := doc.Find(`link[rel="image_src"]`).First().Attr("href")
	return href
}

var embeddedTimeExpr = regexp.MustCompile(`"time_updated"\s*:\s*(\d{9,11})`)

func (r *Resolver) extractTimeUpdated(doc *goquery.Document, body []byte) int64 {
	// direct numeric timestamp when the page embeds one
	groups := embeddedTimeExpr.FindSubmatch(body)
	if groups != nil {
		ts, err := strconv.ParseInt(string(groups[1]), 10, 64)
		if err == nil {
			return ts
		}
	}

	// otherwise fall back to the stat rows, the update time is the
	// last date-shaped entry (after the posted time)
	var updated int64
	doc.Find("div.detailsStatRight").Each(func(_ int, sel *goquery.Selection) {
		ts, ok := ParsePageTime(sel.Text(), r.now())
		if ok {
			updated = ts
		}
	})
	return updated
}
