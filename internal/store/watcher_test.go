package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesWatcherReportsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 10)

	w, err := WatchSeries(dir, func(name string) { changed <- name })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golang.csv"), []byte("start,tweet_count\n"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, "golang", name)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestSeriesWatcherMissingDir(t *testing.T) {
	_, err := WatchSeries(filepath.Join(t.TempDir(), "missing"), func(string) {})
	assert.Error(t, err)
}

func TestFileStoreWatchSkipsOwnWrites(t *testing.T) {
	s, _ := newTestStore(t)
	changed := make(chan string, 10)

	w, err := s.Watch(func(name string) { changed <- name })
	require.NoError(t, err)
	defer w.Close()

	points := []types.TimeSeriesPoint{{Start: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), TweetCount: 3}}
	require.NoError(t, s.SaveSeries(context.Background(), "golang", points))

	select {
	case name := <-changed:
		t.Fatalf("own write reported as a change to %s", name)
	case <-time.After(500 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(s.SeriesPath("golang"), []byte("start,tweet_count\n"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, "golang", name)
	case <-time.After(3 * time.Second):
		t.Fatal("outside edit not reported")
	}
}
