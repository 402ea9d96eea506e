package dashboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentageChange(t *testing.T) {
	tests := []struct {
		c1, c2 int
		pct    int
		trend  types.Trend
	}{
		{50, 25, 100, types.TrendUp},
		{0, 0, 0, types.TrendNoChange},
		{10, 0, 100, types.TrendUp},
		{5, 10, -50, types.TrendDown},
		{7, 7, 0, types.TrendNoChange},
		{0, 4, -100, types.TrendDown},
		{1, 3, -67, types.TrendDown},
		// Halves round to even.
		{1, 8, -88, types.TrendDown},
		{3, 8, -62, types.TrendDown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.c1, tt.c2), func(t *testing.T) {
			pct, trend := PercentageChange(tt.c1, tt.c2)
			assert.Equal(t, tt.pct, pct)
			assert.Equal(t, tt.trend, trend)
		})
	}
}

func TestDayCounts(t *testing.T) {
	today := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	day := func(d, h int) time.Time { return time.Date(2024, 5, d, h, 0, 0, 0, time.UTC) }

	points := []types.TimeSeriesPoint{
		{Start: day(9, 0), TweetCount: 50},
		{Start: day(7, 0), TweetCount: 99},
		{Start: day(8, 0), TweetCount: 25},
		{Start: day(10, 0), TweetCount: 5},
	}
	c1, c2 := DayCounts(points, today)
	assert.Equal(t, 50, c1)
	assert.Equal(t, 25, c2)

	t.Run("missing days are zero", func(t *testing.T) {
		c1, c2 := DayCounts([]types.TimeSeriesPoint{{Start: day(1, 0), TweetCount: 3}}, today)
		assert.Zero(t, c1)
		assert.Zero(t, c2)
	})

	t.Run("latest bucket of a day wins", func(t *testing.T) {
		hourly := []types.TimeSeriesPoint{
			{Start: day(9, 18), TweetCount: 4},
			{Start: day(9, 6), TweetCount: 1},
		}
		c1, _ := DayCounts(hourly, today)
		assert.Equal(t, 4, c1)
	})

	t.Run("uses UTC dates", func(t *testing.T) {
		loc := time.FixedZone("UTC+9", 9*3600)
		// 2024-05-09 00:00 UTC seen from UTC+9.
		local := []types.TimeSeriesPoint{{Start: time.Date(2024, 5, 9, 9, 0, 0, 0, loc), TweetCount: 8}}
		c1, _ := DayCounts(local, today)
		assert.Equal(t, 8, c1)
	})
}

func TestComputeTrend(t *testing.T) {
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	points := []types.TimeSeriesPoint{
		{Start: today.AddDate(0, 0, -2), TweetCount: 10},
		{Start: today.AddDate(0, 0, -1), TweetCount: 5},
	}
	pct, trend := ComputeTrend(points, today)
	assert.Equal(t, -50, pct)
	assert.Equal(t, types.TrendDown, trend)

	pct, trend = ComputeTrend(nil, today)
	assert.Zero(t, pct)
	assert.Equal(t, types.TrendNoChange, trend)
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{90, "1m30s"},
		{3599, "59m59s"},
		{3600, "1h"},
		{3700, "1h1m"},
		{86399, "23h59m"},
		{86400, "1d"},
		{90000, "1d"},
		{-30, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAge(time.Duration(tt.secs)*time.Second), "elapsed %ds", tt.secs)
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name      string
		items     []int
		page      int
		wantPage  int
		wantPages int
		wantLen   int
		wantFirst int
	}{
		{"first", items, 1, 1, 3, 10, 0},
		{"middle", items, 2, 2, 3, 10, 10},
		{"last partial", items, 3, 3, 3, 5, 20},
		{"clamped high", items, 9, 3, 3, 5, 20},
		{"clamped low", items, 0, 1, 3, 10, 0},
		{"negative", items, -4, 1, 3, 10, 0},
		{"exact multiple", items[:20], 2, 2, 2, 10, 10},
		{"empty", nil, 5, 1, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.items, tt.page)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, len(tt.items), p.Total)
			require.Len(t, p.Items, tt.wantLen)
			assert.NotNil(t, p.Items)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, p.Items[0])
			}
		})
	}
}

func TestPaginateSliceLength(t *testing.T) {
	for l := 0; l <= 35; l++ {
		items := make([]int, l)
		p := Paginate(items, 1)
		want := (l + PageSize - 1) / PageSize
		if want < 1 {
			want = 1
		}
		require.Equal(t, want, p.TotalPages, "length %d", l)
		for page := 1; page <= p.TotalPages; page++ {
			got := Paginate(items, page)
			require.Equal(t, min(PageSize, l-PageSize*(page-1)), len(got.Items), "length %d page %d", l, page)
		}
	}
}

func TestRankPopular(t *testing.T) {
	ranked := RankPopular([]types.SearchCounter{
		{Query: "a", Count: 1},
		{Query: "b", Count: 5},
		{Query: "c", Count: 1},
		{Query: "d", Count: 5},
	})

	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"b", "d", "a", "c"}, []string{ranked[0].Query, ranked[1].Query, ranked[2].Query, ranked[3].Query})
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, types.TrendNoChange, r.Trend)
	}
}

func TestRecentSearches(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	history := []types.HistoryEntry{
		{Query: "go", Timestamp: now.Add(-2 * time.Hour)},
		{Query: "rust", Timestamp: now.Add(-90 * time.Second)},
		{Query: "go", Timestamp: now.Add(-45 * time.Second)},
		{Query: "zig", Timestamp: now.Add(-25 * time.Hour)},
		{Query: "rust", Timestamp: now.Add(-3 * time.Hour)},
	}

	recent := RecentSearches(history, now)
	require.Len(t, recent, 3)

	assert.Equal(t, "go", recent[0].Query)
	assert.Equal(t, "45s", recent[0].TimeSince)
	assert.Equal(t, "rust", recent[1].Query)
	assert.Equal(t, "1m30s", recent[1].TimeSince)
	assert.Equal(t, "zig", recent[2].Query)
	assert.Equal(t, "1d", recent[2].TimeSince)
}

func TestMatchSuggestions(t *testing.T) {
	ranked := RankPopular([]types.SearchCounter{
		{Query: "Golang", Count: 9},
		{Query: "rust", Count: 8},
		{Query: "go generics", Count: 7},
		{Query: "python", Count: 6},
	})

	got := MatchSuggestions(ranked, "  GO ", SuggestionLimit)
	assert.Equal(t, []types.Suggestion{
		{Query: "Golang", Count: 9, Rank: 1},
		{Query: "go generics", Count: 7, Rank: 3},
	}, got)

	assert.Empty(t, MatchSuggestions(ranked, "", SuggestionLimit))
	assert.NotNil(t, MatchSuggestions(ranked, "", SuggestionLimit))
	assert.Len(t, MatchSuggestions(ranked, "o", 2), 2)
}
