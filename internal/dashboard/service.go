// Package dashboard holds the search, ranking and wallet flows behind the HTTP
// handlers. It owns no I/O of its own: storage, the counts API, the chart cache
// and the live feed are all injected.
package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/cache"
	"github.com/SIMPLYBOYS/tweetpulse/internal/chart"
	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/internal/store"
	"github.com/SIMPLYBOYS/tweetpulse/internal/twitter"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/internal/wallet"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
)

const (
	MsgWalletRequired  = "Please connect your wallet before using this feature."
	MsgQueryRequired   = "Query input is required."
	MsgNoCounts        = "No tweet counts found for that query."
	MsgChartFailed     = "Failed to generate plot."
	MsgGenericFailure  = "An error occurred while processing your request."
	MsgNoWalletAddress = "No wallet address provided."

	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

var (
	// ErrNoCounts means the counts API answered but had no buckets for the query.
	ErrNoCounts = stderrors.New("no tweet counts returned")
	// ErrChartFailed wraps a render failure during a search.
	ErrChartFailed = stderrors.New("chart render failed")
)

// Broadcaster pushes live updates to connected dashboards.
type Broadcaster interface {
	BroadcastSearchEvent(event types.SearchEvent)
	BroadcastPointsUpdate(update types.PointsUpdate)
}

type SearchResult struct {
	Query  string                  `json:"query"`
	Series []types.TimeSeriesPoint `json:"series"`
	// PlotURL is the base64 PNG, empty when the series is too short to draw.
	PlotURL string `json:"plot_url,omitempty"`
	Count   int    `json:"count"`
	Points  int    `json:"points"`
}

type Overview struct {
	Popular Page[types.PopularSearch] `json:"popular"`
	Recent  Page[types.RecentSearch]  `json:"recent"`
}

type Service struct {
	store       store.Store
	counts      twitter.CountsClient
	cache       cache.Cache
	feed        Broadcaster
	granularity string
	now         func() time.Time
}

type Option func(*Service)

func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.feed = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithGranularity(granularity string) Option {
	return func(s *Service) { s.granularity = granularity }
}

func NewService(st store.Store, counts twitter.CountsClient, c cache.Cache, opts ...Option) *Service {
	s := &Service{
		store:       st,
		counts:      counts,
		cache:       c,
		granularity: twitter.GranularityDay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory(10 * time.Minute)
	}
	return s
}

// Search fetches fresh counts for query on behalf of walletAddr and records
// the search. Nothing is written unless the fetch and the chart render succeed.
func (s *Service) Search(ctx context.Context, walletAddr, query string) (*SearchResult, error) {
	if walletAddr == "" {
		return nil, &errors.PreconditionError{Message: MsgWalletRequired}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &errors.PreconditionError{Message: MsgQueryRequired}
	}

	logger.Debug("Fetching tweet counts for %q", query)
	series, err := s.counts.RecentCounts(ctx, query, s.granularity)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrNoCounts
	}

	png, err := chart.RenderPNG(query, series)
	switch {
	case stderrors.Is(err, chart.ErrNotEnoughPoints):
		logger.Debug("Only %d bucket for %q, skipping chart", len(series), query)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrChartFailed, err)
	}

	if err := s.store.SaveSeries(ctx, query, series); err != nil {
		return nil, err
	}
	if err := s.store.AppendHistory(ctx, query, s.now().UTC()); err != nil {
		return nil, err
	}
	count, err := s.store.IncrementCounter(ctx, query)
	if err != nil {
		return nil, err
	}
	points, err := s.store.AddPoint(ctx, walletAddr)
	if err != nil {
		return nil, err
	}
	logger.Info("Search %q by %s recorded (count %d, points %d)", query, wallet.Short(walletAddr), count, points)

	result := &SearchResult{Query: query, Series: series, Count: count, Points: points}
	key := cache.ChartKey(store.SafeName(query))
	if png != nil {
		result.PlotURL = chart.EncodeBase64(png)
		if err := s.cache.Set(ctx, key, png); err != nil {
			logger.Warn("Failed to cache chart for %q: %v", query, err)
		}
	} else if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn("Failed to drop cached chart for %q: %v", query, err)
	}

	if s.feed != nil {
		s.feed.BroadcastSearchEvent(types.SearchEvent{Query: query, Count: count, Wallet: walletAddr, Timestamp: s.now().UTC()})
		s.feed.BroadcastPointsUpdate(types.PointsUpdate{Address: walletAddr, Points: points})
	}
	return result, nil
}

// Overview builds both ranked lists without calling the counts API.
func (s *Service) Overview(ctx context.Context, popularPage, recentPage int) (*Overview, error) {
	counters, err := s.store.Counters(ctx)
	if err != nil {
		return nil, err
	}
	popular := Paginate(RankPopular(counters), popularPage)

	today := s.now().UTC()
	for i := range popular.Items {
		item := &popular.Items[i]
		series, err := s.store.LoadSeries(ctx, item.Query)
		if stderrors.Is(err, store.ErrSeriesNotFound) {
			logger.Warn("No data file found for query %q", item.Query)
			series = nil
		} else if err != nil {
			return nil, err
		}
		item.PercentageChange, item.Trend = ComputeTrend(series, today)
	}

	history, err := s.store.History(ctx)
	if err != nil {
		return nil, err
	}
	recent := Paginate(RecentSearches(history, today), recentPage)

	return &Overview{Popular: popular, Recent: recent}, nil
}

// Suggest returns ranked queries containing q.
func (s *Service) Suggest(ctx context.Context, q string) ([]types.Suggestion, error) {
	if strings.TrimSpace(q) == "" {
		return []types.Suggestion{}, nil
	}
	counters, err := s.store.Counters(ctx)
	if err != nil {
		return nil, err
	}
	return MatchSuggestions(RankPopular(counters), q, SuggestionLimit), nil
}

// Series returns the stored series for query or a NotFoundError.
func (s *Service) Series(ctx context.Context, query string) ([]types.TimeSeriesPoint, error) {
	series, err := s.store.LoadSeries(ctx, query)
	if stderrors.Is(err, store.ErrSeriesNotFound) {
		return nil, &errors.NotFoundError{Resource: "series", Identifier: query}
	}
	return series, err
}

// PlotPNG returns the chart for a stored series, rendering it on a cache miss.
func (s *Service) PlotPNG(ctx context.Context, query string) ([]byte, error) {
	key := cache.ChartKey(store.SafeName(query))
	if png, err := s.cache.Get(ctx, key); err == nil {
		return png, nil
	} else if !stderrors.Is(err, cache.ErrMiss) {
		logger.Warn("Chart cache lookup for %q failed: %v", query, err)
	}

	series, err := s.Series(ctx, query)
	if err != nil {
		return nil, err
	}
	png, err := chart.RenderPNG(query, series)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, png); err != nil {
		logger.Warn("Failed to cache chart for %q: %v", query, err)
	}
	return png, nil
}

// PlotText renders the stored series as a terminal chart.
func (s *Service) PlotText(ctx context.Context, query string, width int) (string, error) {
	series, err := s.Series(ctx, query)
	if err != nil {
		return "", err
	}
	return chart.RenderText(query, series, width, 0)
}

// InvalidateChart drops the cached chart for a sanitized series name.
func (s *Service) InvalidateChart(ctx context.Context, safeName string) {
	if err := s.cache.Delete(ctx, cache.ChartKey(safeName)); err != nil {
		logger.Warn("Failed to invalidate chart %s: %v", safeName, err)
		return
	}
	logger.Debug("Invalidated cached chart for %s", safeName)
}

// ConnectWallet normalises raw, records it if new and returns the canonical
// address with its balance.
func (s *Service) ConnectWallet(ctx context.Context, raw string) (string, int, error) {
	address, ok := wallet.Normalize(raw)
	if !ok {
		return "", 0, &errors.PreconditionError{Message: MsgNoWalletAddress}
	}
	points, created, err := s.store.ConnectWallet(ctx, address, s.now().UTC())
	if err != nil {
		return "", 0, err
	}
	if created {
		logger.Info("New wallet connected: %s", address)
	} else {
		logger.Debug("Wallet reconnected: %s (points %d)", address, points)
	}
	return address, points, nil
}

func (s *Service) Points(ctx context.Context, address string) (int, error) {
	if address == "" {
		return 0, nil
	}
	return s.store.Points(ctx, address)
}

// Leaderboard clamps limit to [1, MaxLeaderboardLimit], using the default for non-positive values.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	return s.store.Leaderboard(ctx, limit)
}

// FlashMessage turns a Search error into the message shown to the user.
func FlashMessage(err error) string {
	var precondition *errors.PreconditionError
	var upstream *errors.UpstreamError
	switch {
	case stderrors.As(err, &precondition):
		return precondition.Message
	case stderrors.As(err, &upstream):
		detail := upstream.Error()
		if upstream.Err != nil {
			detail = upstream.Err.Error()
		}
		return "Failed to fetch Twitter data: " + detail
	case stderrors.Is(err, ErrNoCounts):
		return MsgNoCounts
	case stderrors.Is(err, ErrChartFailed):
		return MsgChartFailed
	default:
		return MsgGenericFailure
	}
}
