package store

import (
	"context"
	"errors"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
)

// ErrSeriesNotFound is returned by LoadSeries when no series was ever saved for a query.
var ErrSeriesNotFound = errors.New("series not found")

// Store is the persistence contract shared by the flat-file and Postgres backends.
type Store interface {
	// IncrementCounter adds one to the query's search count and returns the new total.
	IncrementCounter(ctx context.Context, query string) (int, error)
	Counters(ctx context.Context) ([]types.SearchCounter, error)

	AppendHistory(ctx context.Context, query string, at time.Time) error
	History(ctx context.Context) ([]types.HistoryEntry, error)

	// SaveSeries replaces whatever was stored for the query.
	SaveSeries(ctx context.Context, query string, points []types.TimeSeriesPoint) error
	LoadSeries(ctx context.Context, query string) ([]types.TimeSeriesPoint, error)

	// ConnectWallet records the address if it is new and makes sure it has a balance.
	// It returns the current balance and whether the wallet was created.
	ConnectWallet(ctx context.Context, address string, at time.Time) (int, bool, error)
	Points(ctx context.Context, address string) (int, error)
	AddPoint(ctx context.Context, address string) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)

	Close() error
}
