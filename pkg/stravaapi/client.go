// Package stravaapi provides a typed Strava v3 API client with proactive
// OAuth2 token refresh, pagination, and client-side activity-type filtering.
package stravaapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const (
	// DefaultBaseURL is the Strava v3 API base URL.
	DefaultBaseURL = "https://www.strava.com/api/v3"

	// pageSize is the fixed page size used when walking all pages of a range.
	pageSize = 100

	// typeSampleSize is how many recent activities are sampled to discover
	// the distinct activity types. Best-effort, not exhaustive.
	typeSampleSize = 200

	// DefaultMaxPages is the hard cap on page fetches when walking a range.
	DefaultMaxPages = 10
)

// Activity is one activity record as returned by the API. The payload stays
// opaque; only the activity type is extracted, for client-side filtering.
type Activity struct {
	Type string
	Raw  jx.Raw
}

// MarshalJSON emits the original upstream payload untouched.
func (a Activity) MarshalJSON() ([]byte, error) {
	if len(a.Raw) == 0 {
		return []byte("null"), nil
	}
	return a.Raw, nil
}

// Client issues authenticated requests against the Strava API.
type Client struct {
	baseURL string
	tokens  *TokenSource
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests point it at a mock server).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used for data requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a Strava API client backed by the given token source.
func NewClient(tokens *TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs one authenticated GET. The token is ensured fresh first;
// non-2xx responses become a FetchError carrying the upstream body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ListActivitiesParams are the query parameters for one activity page.
// Before/After are unix timestamps bounding the window; Type is applied
// client-side after the page is received.
type ListActivitiesParams struct {
	PerPage int
	Page    int
	Before  int64
	After   int64
	Type    string
}

// ListActivities fetches one page of athlete activities and applies the
// optional client-side type filter.
func (c *Client) ListActivities(ctx context.Context, params ListActivitiesParams) ([]Activity, error) {
	if params.PerPage <= 0 {
		params.PerPage = pageSize
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(params.PerPage))
	query.Set("page", strconv.Itoa(params.Page))
	if params.Before > 0 {
		query.Set("before", strconv.FormatInt(params.Before, 10))
	}
	if params.After > 0 {
		query.Set("after", strconv.FormatInt(params.After, 10))
	}

	body, err := c.get(ctx, "/athlete/activities", query)
	if err != nil {
		return nil, err
	}

	activities, err := decodeActivities(body)
	if err != nil {
		return nil, err
	}
	return filterByType(activities, params.Type), nil
}

// ListActivitiesInRange fetches one page of activities between two inclusive
// calendar dates (YYYY-MM-DD). The end date is made inclusive by extending
// the window bound one day past its midnight.
func (c *Client) ListActivitiesInRange(ctx context.Context, startDate, endDate string, limit int, activityType string) ([]Activity, error) {
	after, before, err := DateWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return c.ListActivities(ctx, ListActivitiesParams{
		PerPage: limit,
		After:   after,
		Before:  before,
		Type:    activityType,
	})
}

// ListAllActivitiesInRange walks every page of activities in the date range,
// 100 per page, until an empty page, a short page, or maxPages fetches.
// Each page is filtered by type before accumulating; upstream order is kept.
// The short-page check runs on the raw page, before filtering, so that a
// filter never hides the true end of the listing.
func (c *Client) ListAllActivitiesInRange(ctx context.Context, startDate, endDate, activityType string, maxPages int) ([]Activity, error) {
	after, before, err := DateWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	all := []Activity{}
	for page := 1; page <= maxPages; page++ {
		activities, err := c.ListActivities(ctx, ListActivitiesParams{
			PerPage: pageSize,
			Page:    page,
			After:   after,
			Before:  before,
		})
		if err != nil {
			return nil, err
		}
		if len(activities) == 0 {
			break
		}
		all = append(all, filterByType(activities, activityType)...)
		if len(activities) < pageSize {
			break // short page means last page
		}
	}
	return all, nil
}

// ListActivityTypes samples the most recent activities and returns the
// distinct activity types observed, sorted for stable output.
func (c *Client) ListActivityTypes(ctx context.Context) ([]string, error) {
	activities, err := c.ListActivities(ctx, ListActivitiesParams{PerPage: typeSampleSize})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	types := []string{}
	for _, a := range activities {
		if a.Type == "" || seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		types = append(types, a.Type)
	}
	sort.Strings(types)
	return types, nil
}

// GetAthlete fetches the authenticated athlete's profile.
func (c *Client) GetAthlete(ctx context.Context) (jx.Raw, error) {
	body, err := c.get(ctx, "/athlete", nil)
	if err != nil {
		return nil, err
	}
	return jx.Raw(body), nil
}

// GetActivity fetches the detail record for a single activity.
func (c *Client) GetActivity(ctx context.Context, activityID string) (jx.Raw, error) {
	body, err := c.get(ctx, "/activities/"+url.PathEscape(activityID), nil)
	if err != nil {
		return nil, err
	}
	return jx.Raw(body), nil
}

// DateWindow converts inclusive calendar dates to a half-open unix window
// [after, before): after is midnight UTC of the start date, before is
// midnight UTC one day past the end date.
func DateWindow(startDate, endDate string) (after, before int64, err error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid start date %q", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid end date %q", endDate)
	}
	return start.Unix(), end.AddDate(0, 0, 1).Unix(), nil
}

// decodeActivities parses the upstream activity array, keeping each record
// opaque and pulling out only its type field.
func decodeActivities(data []byte) ([]Activity, error) {
	activities := []Activity{}
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		activities = append(activities, Activity{
			Type: activityType(raw),
			Raw:  raw,
		})
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode activities")
	}
	return activities, nil
}

// activityType scans an opaque activity record for its "type" field.
func activityType(raw jx.Raw) string {
	var typ string
	d := jx.DecodeBytes(raw)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "type" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		typ = s
		return nil
	})
	return typ
}

// filterByType keeps activities matching the given type; empty type keeps all.
func filterByType(activities []Activity, activityType string) []Activity {
	if activityType == "" {
		return activities
	}
	filtered := []Activity{}
	for _, a := range activities {
		if a.Type == activityType {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
