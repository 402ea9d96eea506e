package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/tidwall/gjson"
)

const (
	GranularityDay    = "day"
	GranularityHour   = "hour"
	GranularityMinute = "minute"

	recentCountsPath = "/2/tweets/counts/recent"
	maxBodyBytes     = 4 << 20
)

// CountsClient fetches time-bucketed post counts for a search query.
type CountsClient interface {
	RecentCounts(ctx context.Context, query, granularity string) ([]types.TimeSeriesPoint, error)
}

// Client talks to the v2 recent counts endpoint with an app bearer token.
type Client struct {
	baseURL     string
	bearerToken string
	timeout     time.Duration
	httpc       *http.Client
}

func NewClient(baseURL, bearerToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		timeout:     timeout,
		httpc:       &http.Client{},
	}
}

// RecentCounts returns the buckets ordered by start. An empty result is not an error.
func (c *Client) RecentCounts(ctx context.Context, query, granularity string) ([]types.TimeSeriesPoint, error) {
	if granularity == "" {
		granularity = GranularityDay
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("granularity", granularity)
	endpoint := c.baseURL + recentCountsPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &errors.UpstreamError{Operation: "build recent counts request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &errors.UpstreamError{Operation: "recent counts", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errors.UpstreamError{Operation: "read recent counts", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errors.UpstreamError{
			Operation:  "recent counts",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", apiMessage(body, resp.Status)),
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, &errors.UpstreamError{Operation: "decode recent counts", StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON payload")}
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		if gjson.GetBytes(body, "errors").Exists() {
			return nil, &errors.UpstreamError{
				Operation:  "recent counts",
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s", apiMessage(body, resp.Status)),
			}
		}
		logger.Debug("No count buckets returned for query %q", query)
		return []types.TimeSeriesPoint{}, nil
	}

	buckets := data.Array()
	points := make([]types.TimeSeriesPoint, 0, len(buckets))
	for i, bucket := range buckets {
		start, err := time.Parse(time.RFC3339, bucket.Get("start").String())
		if err != nil {
			return nil, &errors.UpstreamError{Operation: "decode recent counts", Err: fmt.Errorf("bucket %d: bad start: %w", i, err)}
		}
		count := bucket.Get("tweet_count")
		if !count.Exists() || count.Int() < 0 {
			return nil, &errors.UpstreamError{Operation: "decode recent counts", Err: fmt.Errorf("bucket %d: missing tweet_count", i)}
		}
		points = append(points, types.TimeSeriesPoint{Start: start.UTC(), TweetCount: int(count.Int())})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Start.Before(points[j].Start) })

	logger.Debug("Fetched %d count buckets for query %q (total %d)", len(points), query, gjson.GetBytes(body, "meta.total_tweet_count").Int())
	return points, nil
}

// apiMessage picks the most specific human message from an error payload.
func apiMessage(body []byte, fallback string) string {
	for _, path := range []string{"detail", "errors.0.message", "title", "errors.0.detail"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return fallback
}
