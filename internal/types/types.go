package types

import "time"

// SearchCounter is the number of successful searches for one query.
type SearchCounter struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// HistoryEntry is one search event.
type HistoryEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// TimeSeriesPoint is a single count bucket returned by the post-count API.
type TimeSeriesPoint struct {
	Start      time.Time `json:"start"`
	TweetCount int       `json:"tweet_count"`
}

type Trend string

const (
	TrendUp       Trend = "up"
	TrendDown     Trend = "down"
	TrendNoChange Trend = "no_change"
)

// PopularSearch is a counter annotated with its global rank and two-day trend.
type PopularSearch struct {
	Query            string `json:"query"`
	Count            int    `json:"count"`
	Rank             int    `json:"rank"`
	PercentageChange int    `json:"percentage_change"`
	Trend            Trend  `json:"trend"`
}

type RecentSearch struct {
	Query        string    `json:"query"`
	LastSearched time.Time `json:"last_searched"`
	TimeSince    string    `json:"time_since"`
}

type Suggestion struct {
	Query string `json:"query"`
	Count int    `json:"count"`
	Rank  int    `json:"rank"`
}

type LeaderboardEntry struct {
	Address string `json:"address"`
	Points  int    `json:"points"`
}

// SearchEvent is pushed to live-feed clients after a successful search.
type SearchEvent struct {
	Query     string    `json:"query"`
	Count     int       `json:"count"`
	Wallet    string    `json:"wallet"`
	Timestamp time.Time `json:"timestamp"`
}

type PointsUpdate struct {
	Address string `json:"address"`
	Points  int    `json:"points"`
}
