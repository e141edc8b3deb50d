package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// ListOptions narrows item enumeration.
type ListOptions struct {
	// IncludeTypes filters by server item type (Movie, Series, Episode).
	IncludeTypes []string
	// StartIndex resumes enumeration from a cursor returned by a pager.
	StartIndex int
	// Recursive walks the whole library subtree.
	Recursive bool
}

// ItemPager pulls one page of library items at a time. The cursor survives
// restarts: a new pager with StartIndex set to Cursor() resumes enumeration.
type ItemPager struct {
	client    *Client
	libraryID string
	opts      ListOptions
	cursor    int
	total     int
	done      bool
}

// Items creates a pager over a library's items.
func (c *Client) Items(libraryID string, opts ListOptions) *ItemPager {
	return &ItemPager{
		client:    c,
		libraryID: strings.TrimSpace(libraryID),
		opts:      opts,
		cursor:    opts.StartIndex,
	}
}

// Next fetches the next page. The second return is false once the sequence is
// exhausted; the page may still be non-empty on the final call.
func (p *ItemPager) Next(ctx context.Context) ([]ItemSummary, bool, error) {
	if p.done {
		return nil, false, nil
	}

	params := url.Values{}
	if p.libraryID != "" {
		params.Set("ParentId", p.libraryID)
	}
	params.Set("StartIndex", strconv.Itoa(p.cursor))
	params.Set("Limit", strconv.Itoa(p.client.pageSize))
	params.Set("Fields", "ProductionYear")
	params.Set("SortBy", "SortName")
	if len(p.opts.IncludeTypes) > 0 {
		params.Set("IncludeItemTypes", strings.Join(p.opts.IncludeTypes, ","))
	}
	if p.opts.Recursive {
		params.Set("Recursive", "true")
	}

	var payload struct {
		Items            []ItemSummary `json:"Items"`
		TotalRecordCount int           `json:"TotalRecordCount"`
	}
	if err := p.client.getJSON(ctx, p.client.userPath("/Items"), params, &payload); err != nil {
		return nil, false, err
	}

	p.cursor += len(payload.Items)
	p.total = payload.TotalRecordCount
	if len(payload.Items) == 0 || (p.total > 0 && p.cursor >= p.total) {
		p.done = true
	}
	return payload.Items, !p.done || len(payload.Items) > 0, nil
}

// Cursor returns the restart position for the next page.
func (p *ItemPager) Cursor() int { return p.cursor }

// Total returns the server-reported total, known after the first page.
func (p *ItemPager) Total() int { return p.total }

// ListAllItems drains a library into memory. Intended for batch submission,
// where the item ID list is needed up front.
func (c *Client) ListAllItems(ctx context.Context, libraryID string, opts ListOptions) ([]ItemSummary, error) {
	pager := c.Items(libraryID, opts)
	var all []ItemSummary
	for {
		page, more, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if !more || len(page) == 0 {
			return all, nil
		}
	}
}

// SeriesEpisodes lists episode summaries of a series in airing order.
func (c *Client) SeriesEpisodes(ctx context.Context, seriesID string) ([]ItemSummary, error) {
	if strings.TrimSpace(seriesID) == "" {
		return nil, services.Wrap(services.ErrCatalogNotFound, "catalog", "series_episodes", "empty series id", nil)
	}
	params := url.Values{}
	if c.userID != "" {
		params.Set("UserId", c.userID)
	}
	var payload struct {
		Items []ItemSummary `json:"Items"`
	}
	if err := c.getJSON(ctx, "/Shows/"+url.PathEscape(seriesID)+"/Episodes", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// AddTag ensures the tag is present on the item. Tags are set membership;
// adding an existing tag is a no-op.
func (c *Client) AddTag(ctx context.Context, itemID, tag string) error {
	return c.updateTags(ctx, itemID, tag, true)
}

// RemoveTag ensures the tag is absent from the item.
func (c *Client) RemoveTag(ctx context.Context, itemID, tag string) error {
	return c.updateTags(ctx, itemID, tag, false)
}

func (c *Client) updateTags(ctx context.Context, itemID, tag string, add bool) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return services.Wrap(services.ErrConfigInvalid, "catalog", "update_tags", "empty tag name", nil)
	}
	item, err := c.GetItem(ctx, itemID)
	if err != nil {
		return err
	}

	had := item.HasTag(tag)
	if add == had {
		return nil
	}

	tags := make([]string, 0, len(item.Tags)+1)
	for _, existing := range item.Tags {
		if strings.EqualFold(existing, tag) {
			continue
		}
		tags = append(tags, existing)
	}
	if add {
		tags = append(tags, tag)
	}

	// The metadata update endpoint replaces the fields it is given; Id and
	// Name must accompany the new tag list.
	body := map[string]any{
		"Id":   item.ID,
		"Name": item.Name,
		"Tags": tags,
	}
	return c.postJSON(ctx, "/Items/"+url.PathEscape(item.ID), body)
}
