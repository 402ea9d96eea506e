package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/internal/store"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
)

func (s *PostgresStore) IncrementCounter(ctx context.Context, query string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO search_counters (query, count)
		VALUES ($1, 1)
		ON CONFLICT (query) DO UPDATE
		SET count = search_counters.count + 1
		RETURNING count`, query).Scan(&count)
	if err != nil {
		return 0, &errors.StorageError{Operation: "increment counter", Err: err}
	}
	logger.Debug("Updated search counter for %q (count: %d)", query, count)
	return count, nil
}

func (s *PostgresStore) Counters(ctx context.Context) ([]types.SearchCounter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query, count FROM search_counters ORDER BY id`)
	if err != nil {
		return nil, &errors.StorageError{Operation: "query counters", Err: err}
	}
	defer rows.Close()

	var counters []types.SearchCounter
	for rows.Next() {
		var c types.SearchCounter
		if err := rows.Scan(&c.Query, &c.Count); err != nil {
			return nil, &errors.StorageError{Operation: "scan counter", Err: err}
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.StorageError{Operation: "iterate counters", Err: err}
	}
	return counters, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, query string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, searched_at) VALUES ($1, $2)`, query, at.UTC())
	if err != nil {
		return &errors.StorageError{Operation: "append history", Err: err}
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context) ([]types.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query, searched_at FROM search_history ORDER BY id`)
	if err != nil {
		return nil, &errors.StorageError{Operation: "query history", Err: err}
	}
	defer rows.Close()

	var history []types.HistoryEntry
	for rows.Next() {
		var h types.HistoryEntry
		if err := rows.Scan(&h.Query, &h.Timestamp); err != nil {
			return nil, &errors.StorageError{Operation: "scan history", Err: err}
		}
		h.Timestamp = h.Timestamp.UTC()
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.StorageError{Operation: "iterate history", Err: err}
	}
	return history, nil
}

// SaveSeries replaces the query's points in one transaction.
func (s *PostgresStore) SaveSeries(ctx context.Context, query string, points []types.TimeSeriesPoint) error {
	name := store.SafeName(query)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errors.StorageError{Operation: "begin save series", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (name, query, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET query = EXCLUDED.query, updated_at = EXCLUDED.updated_at`, name, query)
	if err != nil {
		return &errors.StorageError{Operation: "upsert series", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM series_points WHERE series = $1`, name); err != nil {
		return &errors.StorageError{Operation: "clear series points", Err: err}
	}

	for _, p := range points {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO series_points (series, start, tweet_count)
			VALUES ($1, $2, $3)
			ON CONFLICT (series, start) DO UPDATE
			SET tweet_count = EXCLUDED.tweet_count`, name, p.Start.UTC(), p.TweetCount)
		if err != nil {
			return &errors.StorageError{Operation: "insert series point", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.StorageError{Operation: "commit save series", Err: err}
	}
	logger.Debug("Saved %d count buckets for series %s", len(points), name)
	return nil
}

func (s *PostgresStore) LoadSeries(ctx context.Context, query string) ([]types.TimeSeriesPoint, error) {
	name := store.SafeName(query)

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM series WHERE name = $1`, name).Scan(&exists)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSeriesNotFound
	}
	if err != nil {
		return nil, &errors.StorageError{Operation: "lookup series", Err: err}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start, tweet_count FROM series_points WHERE series = $1 ORDER BY start`, name)
	if err != nil {
		return nil, &errors.StorageError{Operation: "query series points", Err: err}
	}
	defer rows.Close()

	points := []types.TimeSeriesPoint{}
	for rows.Next() {
		var p types.TimeSeriesPoint
		if err := rows.Scan(&p.Start, &p.TweetCount); err != nil {
			return nil, &errors.StorageError{Operation: "scan series point", Err: err}
		}
		p.Start = p.Start.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.StorageError{Operation: "iterate series points", Err: err}
	}
	return points, nil
}

func (s *PostgresStore) ConnectWallet(ctx context.Context, address string, at time.Time) (int, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, &errors.StorageError{Operation: "begin connect wallet", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (address, connect_date)
		VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING`, address, at.UTC())
	if err != nil {
		return 0, false, &errors.StorageError{Operation: "insert wallet", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, &errors.StorageError{Operation: "insert wallet", Err: err}
	}
	created := affected > 0

	_, err = tx.ExecContext(ctx, `
		INSERT INTO points (address, balance)
		VALUES ($1, 0)
		ON CONFLICT (address) DO NOTHING`, address)
	if err != nil {
		return 0, false, &errors.StorageError{Operation: "init points", Err: err}
	}

	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM points WHERE address = $1`, address).Scan(&balance); err != nil {
		return 0, false, &errors.StorageError{Operation: "read points", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, &errors.StorageError{Operation: "commit connect wallet", Err: err}
	}
	return balance, created, nil
}

func (s *PostgresStore) Points(ctx context.Context, address string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM points WHERE address = $1`, address).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &errors.StorageError{Operation: "read points", Err: err}
	}
	return balance, nil
}

func (s *PostgresStore) AddPoint(ctx context.Context, address string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO points (address, balance)
		VALUES ($1, 1)
		ON CONFLICT (address) DO UPDATE
		SET balance = points.balance + 1
		RETURNING balance`, address).Scan(&balance)
	if err != nil {
		return 0, &errors.StorageError{Operation: "add point", Err: err}
	}
	logger.Debug("Incremented points for wallet %s to %d", address, balance)
	return balance, nil
}

func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, balance
		FROM points
		ORDER BY balance DESC, address ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, &errors.StorageError{Operation: "query leaderboard", Err: err}
	}
	defer rows.Close()

	board := []types.LeaderboardEntry{}
	for rows.Next() {
		var e types.LeaderboardEntry
		if err := rows.Scan(&e.Address, &e.Points); err != nil {
			return nil, &errors.StorageError{Operation: "scan leaderboard entry", Err: err}
		}
		board = append(board, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.StorageError{Operation: "iterate leaderboard", Err: err}
	}
	return board, nil
}
