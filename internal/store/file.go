package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
)

const (
	CountersFile = "recent_searches.csv"
	HistoryFile  = "search_history.csv"
	SeriesDir    = "data"
	AccountsDir  = "account-list"
	WalletsFile  = "wallet.json"
	PointsFile   = "points.json"

	// HistoryTimeLayout is the UTC timestamp format of the history log.
	HistoryTimeLayout = "2006-01-02 15:04:05"
	// SeriesTimeLayout is how bucket starts are written to series files.
	SeriesTimeLayout = "2006-01-02T15:04:05.000Z"
)

var (
	countersHeader = []string{"Query", "Count"}
	historyHeader  = []string{"Query", "Timestamp"}
	seriesHeader   = []string{"start", "tweet_count"}
)

// FileStore keeps every collection in a human-readable file under one root.
// Each file has its own mutex, so read-modify-write cycles are serialised within
// this process. Other processes writing the same files can still lose updates.
type FileStore struct {
	root string

	countersMu sync.Mutex
	historyMu  sync.Mutex
	seriesMu   sync.Mutex
	walletsMu  sync.Mutex
	pointsMu   sync.Mutex

	// Series files written by SaveSeries, keyed by safe name, so Watch can
	// tell them apart from outside edits.
	ownMu     sync.Mutex
	ownWrites map[string]time.Time
}

type walletRow struct {
	Address     string `json:"address"`
	ConnectDate string `json:"connect_date"`
}

// NewFileStore creates the layout under root if needed and returns the store.
func NewFileStore(root string) (*FileStore, error) {
	s := &FileStore{root: root, ownWrites: make(map[string]time.Time)}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init creates any missing directory or file. Existing files are left alone.
func (s *FileStore) Init() error {
	for _, dir := range []string{s.root, s.SeriesDir(), filepath.Join(s.root, AccountsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &errors.StorageError{Operation: "create directory " + dir, Err: err}
		}
	}

	seeds := []struct {
		path    string
		content func() ([]byte, error)
	}{
		{s.countersPath(), func() ([]byte, error) { return encodeCSV([][]string{countersHeader}) }},
		{s.historyPath(), func() ([]byte, error) { return encodeCSV([][]string{historyHeader}) }},
		{s.walletsPath(), func() ([]byte, error) { return []byte("[]"), nil }},
		{s.pointsPath(), func() ([]byte, error) { return []byte("{}"), nil }},
	}
	for _, seed := range seeds {
		if _, err := os.Stat(seed.path); err == nil {
			continue
		} else if !stderrors.Is(err, fs.ErrNotExist) {
			return &errors.StorageError{Operation: "stat " + seed.path, Err: err}
		}
		data, err := seed.content()
		if err != nil {
			return &errors.StorageError{Operation: "seed " + seed.path, Err: err}
		}
		if err := writeFileAtomic(seed.path, data); err != nil {
			return &errors.StorageError{Operation: "seed " + seed.path, Err: err}
		}
		logger.Debug("Created %s", seed.path)
	}
	return nil
}

// SeriesDir is the directory holding one CSV per query.
func (s *FileStore) SeriesDir() string { return filepath.Join(s.root, SeriesDir) }

func (s *FileStore) countersPath() string { return filepath.Join(s.root, CountersFile) }
func (s *FileStore) historyPath() string  { return filepath.Join(s.root, HistoryFile) }
func (s *FileStore) walletsPath() string  { return filepath.Join(s.root, AccountsDir, WalletsFile) }
func (s *FileStore) pointsPath() string   { return filepath.Join(s.root, AccountsDir, PointsFile) }

// SeriesPath is the file a query's series is stored in.
func (s *FileStore) SeriesPath(query string) string {
	return filepath.Join(s.SeriesDir(), SafeName(query)+".csv")
}

func (s *FileStore) IncrementCounter(ctx context.Context, query string) (int, error) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	counters, err := s.readCounters()
	if err != nil {
		return 0, err
	}

	found := false
	total := 0
	for i := range counters {
		if counters[i].Query == query {
			counters[i].Count++
			total = counters[i].Count
			found = true
			break
		}
	}
	if !found {
		counters = append(counters, types.SearchCounter{Query: query, Count: 1})
		total = 1
	}

	records := make([][]string, 0, len(counters)+1)
	records = append(records, countersHeader)
	for _, c := range counters {
		records = append(records, []string{c.Query, strconv.Itoa(c.Count)})
	}
	data, err := encodeCSV(records)
	if err != nil {
		return 0, &errors.StorageError{Operation: "encode counters", Err: err}
	}
	if err := writeFileAtomic(s.countersPath(), data); err != nil {
		return 0, &errors.StorageError{Operation: "write counters", Err: err}
	}

	logger.Debug("Updated search counter for %q (count: %d)", query, total)
	return total, nil
}

func (s *FileStore) Counters(ctx context.Context) ([]types.SearchCounter, error) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	return s.readCounters()
}

// readCounters returns counters in file order. A query listed twice keeps its
// first position and its last count.
func (s *FileStore) readCounters() ([]types.SearchCounter, error) {
	records, err := readCSV(s.countersPath())
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.StorageError{Operation: "read counters", Err: err}
	}

	counters := make([]types.SearchCounter, 0, len(records))
	index := make(map[string]int, len(records))
	for i, row := range records {
		if i == 0 {
			continue
		}
		if len(row) < 2 || !isDigits(row[1]) {
			logger.Warn("Skipping malformed counter row %d in %s: %v", i+1, CountersFile, row)
			continue
		}
		count, err := strconv.Atoi(row[1])
		if err != nil {
			logger.Warn("Skipping counter row %d in %s: %v", i+1, CountersFile, err)
			continue
		}
		if pos, ok := index[row[0]]; ok {
			counters[pos].Count = count
			continue
		}
		index[row[0]] = len(counters)
		counters = append(counters, types.SearchCounter{Query: row[0], Count: count})
	}
	return counters, nil
}

func (s *FileStore) AppendHistory(ctx context.Context, query string, at time.Time) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	file, err := os.OpenFile(s.historyPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &errors.StorageError{Operation: "open history", Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return &errors.StorageError{Operation: "stat history", Err: err}
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(historyHeader); err != nil {
			return &errors.StorageError{Operation: "write history header", Err: err}
		}
	}
	stamp := at.UTC().Format(HistoryTimeLayout)
	if err := w.Write([]string{query, stamp}); err != nil {
		return &errors.StorageError{Operation: "append history", Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &errors.StorageError{Operation: "append history", Err: err}
	}

	logger.Debug("Appended to search history: %q at %s UTC", query, stamp)
	return nil
}

func (s *FileStore) History(ctx context.Context) ([]types.HistoryEntry, error) {
	s.historyMu.Lock()
	records, err := readCSV(s.historyPath())
	s.historyMu.Unlock()
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.StorageError{Operation: "read history", Err: err}
	}
	if len(records) == 0 {
		return nil, nil
	}

	queryCol, stampCol := -1, -1
	for i, name := range records[0] {
		switch name {
		case "Query":
			queryCol = i
		case "Timestamp":
			stampCol = i
		}
	}
	if queryCol < 0 || stampCol < 0 {
		logger.Error("CSV headers missing in %s. Expected 'Query' and 'Timestamp', found: %v", HistoryFile, records[0])
		return nil, nil
	}

	entries := make([]types.HistoryEntry, 0, len(records)-1)
	for i, row := range records[1:] {
		if queryCol >= len(row) || stampCol >= len(row) || row[queryCol] == "" || row[stampCol] == "" {
			logger.Warn("Missing 'Query' or 'Timestamp' in %s row %d: %v", HistoryFile, i+2, row)
			continue
		}
		at, err := time.ParseInLocation(HistoryTimeLayout, row[stampCol], time.UTC)
		if err != nil {
			logger.Error("Invalid timestamp format for query %q: %s", row[queryCol], row[stampCol])
			continue
		}
		entries = append(entries, types.HistoryEntry{Query: row[queryCol], Timestamp: at})
	}
	return entries, nil
}

func (s *FileStore) SaveSeries(ctx context.Context, query string, points []types.TimeSeriesPoint) error {
	s.seriesMu.Lock()
	defer s.seriesMu.Unlock()

	records := make([][]string, 0, len(points)+1)
	records = append(records, seriesHeader)
	for _, p := range points {
		records = append(records, []string{p.Start.UTC().Format(SeriesTimeLayout), strconv.Itoa(p.TweetCount)})
	}
	data, err := encodeCSV(records)
	if err != nil {
		return &errors.StorageError{Operation: "encode series", Err: err}
	}

	path := s.SeriesPath(query)
	s.markOwnWrite(SafeName(query))
	if err := writeFileAtomic(path, data); err != nil {
		s.takeOwnWrite(SafeName(query))
		return &errors.StorageError{Operation: "write series " + filepath.Base(path), Err: err}
	}
	logger.Debug("Saved %d count buckets to %s", len(points), path)
	return nil
}

func (s *FileStore) LoadSeries(ctx context.Context, query string) ([]types.TimeSeriesPoint, error) {
	path := s.SeriesPath(query)

	s.seriesMu.Lock()
	records, err := readCSV(path)
	s.seriesMu.Unlock()
	if err != nil {
		// A name too long for the filesystem can never have been saved.
		if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, syscall.ENAMETOOLONG) {
			return nil, ErrSeriesNotFound
		}
		return nil, &errors.StorageError{Operation: "read series " + filepath.Base(path), Err: err}
	}

	points := make([]types.TimeSeriesPoint, 0, len(records))
	for i, row := range records {
		if i == 0 {
			continue
		}
		if len(row) < 2 {
			logger.Warn("Skipping short row %d in %s: %v", i+1, path, row)
			continue
		}
		start, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			logger.Warn("Skipping row %d in %s: bad start %q", i+1, path, row[0])
			continue
		}
		count, err := strconv.Atoi(row[1])
		if err != nil || count < 0 {
			logger.Warn("Skipping row %d in %s: bad tweet_count %q", i+1, path, row[1])
			continue
		}
		points = append(points, types.TimeSeriesPoint{Start: start.UTC(), TweetCount: count})
	}
	return points, nil
}

func (s *FileStore) ConnectWallet(ctx context.Context, address string, at time.Time) (int, bool, error) {
	s.walletsMu.Lock()
	defer s.walletsMu.Unlock()

	wallets, err := s.readWallets()
	if err != nil {
		return 0, false, err
	}

	created := true
	for _, w := range wallets {
		if w.Address == address {
			created = false
			break
		}
	}
	if created {
		wallets = append(wallets, walletRow{Address: address, ConnectDate: at.UTC().Format(time.RFC3339Nano)})
		data, err := json.MarshalIndent(wallets, "", "    ")
		if err != nil {
			return 0, false, &errors.StorageError{Operation: "encode wallets", Err: err}
		}
		if err := writeFileAtomic(s.walletsPath(), data); err != nil {
			return 0, false, &errors.StorageError{Operation: "write wallets", Err: err}
		}
		logger.Debug("New wallet connected and saved: %s", address)
	}

	s.pointsMu.Lock()
	defer s.pointsMu.Unlock()

	points, err := s.readPoints()
	if err != nil {
		return 0, created, err
	}
	balance, ok := points[address]
	if !ok {
		points[address] = 0
		if err := s.writePoints(points); err != nil {
			return 0, created, err
		}
		logger.Debug("Initialized points for new wallet: %s", address)
	}
	return balance, created, nil
}

func (s *FileStore) readWallets() ([]walletRow, error) {
	data, err := os.ReadFile(s.walletsPath())
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &errors.StorageError{Operation: "read wallets", Err: err}
	}
	var wallets []walletRow
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, &errors.StorageError{Operation: "decode wallets", Err: err}
	}
	return wallets, nil
}

func (s *FileStore) Points(ctx context.Context, address string) (int, error) {
	s.pointsMu.Lock()
	defer s.pointsMu.Unlock()

	points, err := s.readPoints()
	if err != nil {
		return 0, err
	}
	return points[address], nil
}

func (s *FileStore) AddPoint(ctx context.Context, address string) (int, error) {
	s.pointsMu.Lock()
	defer s.pointsMu.Unlock()

	points, err := s.readPoints()
	if err != nil {
		return 0, err
	}
	points[address]++
	if err := s.writePoints(points); err != nil {
		return 0, err
	}
	logger.Debug("Incremented points for wallet %q to %d", address, points[address])
	return points[address], nil
}

func (s *FileStore) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	s.pointsMu.Lock()
	points, err := s.readPoints()
	s.pointsMu.Unlock()
	if err != nil {
		return nil, err
	}

	entries := make([]types.LeaderboardEntry, 0, len(points))
	for address, balance := range points {
		entries = append(entries, types.LeaderboardEntry{Address: address, Points: balance})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Address < entries[j].Address
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *FileStore) readPoints() (map[string]int, error) {
	points := make(map[string]int)
	data, err := os.ReadFile(s.pointsPath())
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return points, nil
		}
		return nil, &errors.StorageError{Operation: "read points", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return points, nil
	}
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, &errors.StorageError{Operation: "decode points", Err: err}
	}
	return points, nil
}

func (s *FileStore) writePoints(points map[string]int) error {
	data, err := json.MarshalIndent(points, "", "    ")
	if err != nil {
		return &errors.StorageError{Operation: "encode points", Err: err}
	}
	if err := writeFileAtomic(s.pointsPath(), data); err != nil {
		return &errors.StorageError{Operation: "write points", Err: err}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// readCSV reads every record. Rows may have any number of fields.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var records [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if stderrors.As(err, &parseErr) {
				logger.Warn("Skipping unreadable line in %s: %v", filepath.Base(path), err)
				continue
			}
			return nil, err
		}
		records = append(records, row)
	}
	return records, nil
}

func encodeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes to a temp file next to path, then renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file %s: %v", tmpFile, removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
