// Package search queries the registry's administrative web console. The
// programmatic API has no search at all, so this client logs in with a
// form-and-cookie session and scrapes the paginated results table.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/speccoll/arkmint/pkg/core/domain"
	"github.com/speccoll/arkmint/pkg/logger"
	"github.com/speccoll/arkmint/pkg/ports"
)

// The console answers 405 to clients that don't look like a browser.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0"

const defaultPageSize = 1000

type Options struct {
	BaseURL  string
	Username string
	Password string

	// Owner restricts searches to one account's identifiers.
	Owner string

	PageSize int
	Log      logger.Logger
}

type Client struct {
	baseURL  string
	username string
	password string
	owner    string
	pageSize int
	httpc    *http.Client
	log      logger.Logger
}

func NewClient(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		owner:    opts.Owner,
		pageSize: opts.PageSize,
		httpc:    &http.Client{Jar: jar, Timeout: 60 * time.Second},
		log:      opts.Log,
	}
	if c.pageSize == 0 {
		c.pageSize = defaultPageSize
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c, nil
}

// login establishes the console's cookie session.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"next":     {"/"},
		"username": {c.username},
		"password": {c.password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("console login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("console login failed: status %d", resp.StatusCode)
	}
	return nil
}

// columns holds one scraped column per results-table field, accumulated
// across pages so row indices stay aligned by page order.
type columns struct {
	creators, titles, arks, owners, created, updated, statuses []string
}

// rows zips the columns into SearchRows, filling short columns with "" (the
// console occasionally omits a cell) instead of truncating to the shortest.
func (c *columns) rows() []domain.SearchRow {
	all := [][]string{c.creators, c.titles, c.arks, c.owners, c.created, c.updated, c.statuses}
	n := 0
	for _, col := range all {
		if len(col) > n {
			n = len(col)
		}
	}

	out := make([]domain.SearchRow, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.SearchRow{
			Creator: cell(c.creators, i),
			Title:   cell(c.titles, i),
			ARK:     cell(c.arks, i),
			Owner:   cell(c.owners, i),
			Created: cell(c.created, i),
			Updated: cell(c.updated, i),
			Status:  cell(c.statuses, i),
		})
	}
	return out
}

func cell(col []string, i int) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}

// Query runs an authenticated search against /manage and scrapes every
// result page. Filters are console query parameters (keywords, title,
// target, identifier, time ranges).
func (c *Client) Query(ctx context.Context, filters url.Values) ([]domain.SearchRow, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	var cols columns
	maxPage := 1
	for page := 1; page <= maxPage; page++ {
		doc, err := c.fetchPage(ctx, filters, page)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			maxPage = pageCount(doc)
		}

		cols.creators = appendColumn(cols.creators, doc, "c_creator")
		cols.titles = appendColumn(cols.titles, doc, "c_title")
		cols.arks = appendColumn(cols.arks, doc, "c_identifier")
		cols.owners = appendColumn(cols.owners, doc, "c_owner")
		cols.created = appendColumn(cols.created, doc, "c_create_time")
		cols.updated = appendColumn(cols.updated, doc, "c_update_time")
		cols.statuses = appendColumn(cols.statuses, doc, "c_id_status")
	}

	rows := cols.rows()
	c.log.Debug("console query finished",
		logger.Int("pages", maxPage), logger.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) fetchPage(ctx context.Context, filters url.Values, page int) (*goquery.Document, error) {
	query := url.Values{
		"ps":             {strconv.Itoa(c.pageSize)},
		"p":              {strconv.Itoa(page)},
		"order_by":       {"c_update_time"},
		"sort":           {"asc"},
		"owner_selected": {c.owner},
		"c_title":        {"t"},
		"c_creator":      {"t"},
		"c_identifier":   {"t"},
		"c_owner":        {"t"},
		"c_create_time":  {"t"},
		"c_update_time":  {"t"},
		"c_id_status":    {"t"},
	}
	for key, values := range filters {
		for _, v := range values {
			query.Set(key, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/manage?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("console search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("console search failed: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing console page: %w", err)
	}
	return doc, nil
}

// pageCount reads the console's hidden max-page field from the first page.
func pageCount(doc *goquery.Document) int {
	value, ok := doc.Find(`input[name="p_maxpage"]`).First().Attr("value")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func appendColumn(col []string, doc *goquery.Document, class string) []string {
	doc.Find("td." + class + " a").Each(func(_ int, sel *goquery.Selection) {
		col = append(col, strings.TrimSpace(sel.Text()))
	})
	return col
}

// FindByTarget searches the console for identifiers resolving to target.
func (c *Client) FindByTarget(ctx context.Context, target string) ([]domain.SearchRow, error) {
	return c.Query(ctx, url.Values{"target": {target}})
}

// FindReusable searches for records whose title marks them as reusable.
func (c *Client) FindReusable(ctx context.Context) ([]domain.SearchRow, error) {
	return c.Query(ctx, url.Values{"title": {"reuse"}})
}

// Ensure interface compliance
var _ ports.SearchClient = (*Client)(nil)
