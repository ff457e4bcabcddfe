// Package catalog talks to the remote-storage web API, the primary
// (structured) channel for collection membership and item details.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
	"workshopwatch/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

// result codes returned by the catalog service, per item and per collection
const (
	ResultOK           = 1
	ResultFileNotFound = 9
	ResultAccessDenied = 15
)

var (
	ErrCollectionNotFound = fmt.Errorf("collection not found")
	ErrCollectionPrivate  = fmt.Errorf("collection is private")
	ErrCollectionEmpty    = fmt.Errorf("collection has no items")
	ErrServiceUnreachable = fmt.Errorf("catalog service unreachable")
)

const DefaultBaseUrl = "https://api.steampowered.com"

type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to 30s
	Timeout time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")

	telemetry.InstrumentResty(client, "catalog/http")

	return &Client{http: client}
}

type Collection struct {
	ID string
	// display name of the collection itself, empty when the
	// service does not report one
	Name string
	// child identifiers ordered by the collection's sort order
	Children []string
}

type collectionChild struct {
	PublishedFileId string `json:"publishedfileid"`
	SortOrder       int    `json:"sortorder"`
}

type collectionDetail struct {
	PublishedFileId string            `json:"publishedfileid"`
	Result          int               `json:"result"`
	Title           string            `json:"title"`
	Children        []collectionChild `json:"children"`
}

type collectionResponse struct {
	Response struct {
		Result            int                `json:"result"`
		ResultCount       int                `json:"resultcount"`
		CollectionDetails []collectionDetail `json:"collectiondetails"`
	} `json:"response"`
}

// ResolveCollection fetches the ordered membership of a collection.
// All failure modes are terminal for a run: the caller gets one of the
// Err* sentinels and should not continue with partial data.
func (c *Client) ResolveCollection(ctx context.Context, id string) (Collection, error) {
	var body collectionResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"collectioncount":     "1",
			"publishedfileids[0]": id,
		}).
		SetResult(&body).
		Post("/ISteamRemoteStorage/GetCollectionDetails/v1/")
	if err != nil {
		return Collection{}, fmt.Errorf("%w: %s", ErrServiceUnreachable, err)
	}
	if res.StatusCode() != 200 {
		return Collection{}, fmt.Errorf("%w: status %d", ErrServiceUnreachable, res.StatusCode())
	}
	if len(body.Response.CollectionDetails) == 0 {
		return Collection{}, fmt.Errorf("%w: empty response", ErrServiceUnreachable)
	}

	detail := body.Response.CollectionDetails[0]
	switch detail.Result {
	case ResultOK:
	case ResultFileNotFound:
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
	case ResultAccessDenied:
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionPrivate, id)
	default:
		return Collection{}, fmt.Errorf("%w: result code %d", ErrServiceUnreachable, detail.Result)
	}
	if len(detail.Children) == 0 {
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionEmpty, id)
	}

	children := make([]collectionChild, len(detail.Children))
	copy(children, detail.Children)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].SortOrder < children[j].SortOrder
	})

	ids := make([]string, len(children))
	for i, child := range children {
		ids[i] = child.PublishedFileId
	}

	return Collection{
		ID:       id,
		Name:     detail.Title,
		Children: ids,
	}, nil
}

type ItemDetail struct {
	ID          string
	Result      int
	Title       string
	TimeUpdated int64
	PreviewURL  string
}

type itemDetail struct {
	PublishedFileId string `json:"publishedfileid"`
	Result          int    `json:"result"`
	Title           string `json:"title"`
	TimeUpdated     int64  `json:"time_updated"`
	PreviewUrl      string `json:"preview_url"`
}

type detailsResponse struct {
	Response struct {
		Result               int          `json:"result"`
		ResultCount          int          `json:"resultcount"`
		PublishedFileDetails []itemDetail `json:"publishedfiledetails"`
	} `json:"response"`
}

// GetDetails fetches structured metadata for up to 50 identifiers in
// one request. The response carries a per-item result code, a denied
// item still produces an ItemDetail (with its code) rather than an
// error, only transport-level failures error out.
func (c *Client) GetDetails(ctx context.Context, ids []string) ([]ItemDetail, error) {
	form := map[string]string{
		"itemcount": strconv.Itoa(len(ids)),
	}
	for i, id := range ids {
		form[fmt.Sprintf("publishedfileids[%d]", i)] = id
	}

	var body detailsResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&body).
		Post("/ISteamRemoteStorage/GetPublishedFileDetails/v1/")
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("details request: status %d", res.StatusCode())
	}

	details := make([]ItemDetail, 0, len(body.Response.PublishedFileDetails))
	for _, d := range body.Response.PublishedFileDetails {
		details = append(details, ItemDetail{
			ID:          d.PublishedFileId,
			Result:      d.Result,
			Title:       d.Title,
			TimeUpdated: d.TimeUpdated,
			PreviewURL:  d.PreviewUrl,
		})
	}
	return details, nil
}
