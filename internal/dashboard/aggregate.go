package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
)

const (
	PageSize        = 10
	SuggestionLimit = 10
)

// Page is one slice of a ranked list plus the numbers needed to draw a pager.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

// Paginate returns page number page of items. The page is clamped into
// [1, TotalPages] and there is always at least one page.
func Paginate[T any](items []T, page int) Page[T] {
	total := len(items)
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}

	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return Page[T]{Items: out, Page: page, TotalPages: totalPages, Total: total}
}

// PercentageChange compares yesterday's count c1 with the day before's c2.
// Halves round to even.
func PercentageChange(c1, c2 int) (int, types.Trend) {
	var pct int
	switch {
	case c2 == 0 && c1 > 0:
		pct = 100
	case c2 == 0:
		pct = 0
	default:
		pct = int(math.RoundToEven(float64(c1-c2) / float64(c2) * 100))
	}

	switch {
	case c1 > c2:
		return pct, types.TrendUp
	case c1 < c2:
		return pct, types.TrendDown
	default:
		return pct, types.TrendNoChange
	}
}

// DayCounts picks the counts of the buckets starting on the UTC calendar days
// before today and two days before today. Missing days count as zero; when
// several buckets fall on one day the latest start wins.
func DayCounts(points []types.TimeSeriesPoint, today time.Time) (c1, c2 int) {
	sorted := make([]types.TimeSeriesPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	day1 := civilDay(today.AddDate(0, 0, -1))
	day2 := civilDay(today.AddDate(0, 0, -2))
	for _, p := range sorted {
		switch civilDay(p.Start) {
		case day1:
			c1 = p.TweetCount
		case day2:
			c2 = p.TweetCount
		}
	}
	return c1, c2
}

// ComputeTrend is DayCounts followed by PercentageChange.
func ComputeTrend(points []types.TimeSeriesPoint, today time.Time) (int, types.Trend) {
	return PercentageChange(DayCounts(points, today))
}

func civilDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FormatAge renders an elapsed duration as 45s, 1m30s, 1h1m or 2d.
// Negative durations are treated as zero.
func FormatAge(elapsed time.Duration) string {
	secs := int64(elapsed / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		m, s := secs/60, secs%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case secs < 86400:
		h, m := secs/3600, (secs%3600)/60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	default:
		return fmt.Sprintf("%dd", secs/86400)
	}
}

// RankPopular orders counters by count descending, keeping read order for
// ties, and numbers them from 1. Trend fields are left at no_change.
func RankPopular(counters []types.SearchCounter) []types.PopularSearch {
	ranked := make([]types.PopularSearch, len(counters))
	for i, c := range counters {
		ranked[i] = types.PopularSearch{Query: c.Query, Count: c.Count, Trend: types.TrendNoChange}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RecentSearches collapses the history to one entry per query holding its
// latest timestamp, newest first.
func RecentSearches(history []types.HistoryEntry, now time.Time) []types.RecentSearch {
	latest := make(map[string]int, len(history))
	recent := make([]types.RecentSearch, 0, len(history))
	for _, h := range history {
		if i, ok := latest[h.Query]; ok {
			if h.Timestamp.After(recent[i].LastSearched) {
				recent[i].LastSearched = h.Timestamp
			}
			continue
		}
		latest[h.Query] = len(recent)
		recent = append(recent, types.RecentSearch{Query: h.Query, LastSearched: h.Timestamp})
	}

	sort.SliceStable(recent, func(i, j int) bool { return recent[i].LastSearched.After(recent[j].LastSearched) })
	for i := range recent {
		recent[i].TimeSince = FormatAge(now.Sub(recent[i].LastSearched))
	}
	return recent
}

// MatchSuggestions returns up to limit entries of ranked whose query contains
// q, ignoring case. Each keeps its rank in the full list.
func MatchSuggestions(ranked []types.PopularSearch, q string, limit int) []types.Suggestion {
	needle := strings.ToLower(strings.TrimSpace(q))
	out := make([]types.Suggestion, 0, limit)
	if needle == "" {
		return out
	}
	for _, p := range ranked {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(p.Query), needle) {
			out = append(out, types.Suggestion{Query: p.Query, Count: p.Count, Rank: p.Rank})
		}
	}
	return out
}
