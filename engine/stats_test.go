package engine

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunStatsLoggerWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	stop := make(chan struct{})

	calls := 0
	snapshot := func() StatsSnapshot {
		calls++
		return StatsSnapshot{RunningThreads: int64(calls), RegisteredSessions: calls, State: Running}
	}

	done := make(chan struct{})
	go func() {
		RunStatsLogger(path, 10*time.Millisecond, snapshot, nil, stop)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	close(stop)
	<-done

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open stats file: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("got %d records, want at least a header and one row", len(records))
	}
	if records[0][0] != "unix_time" {
		t.Fatalf("header = %v, want unix_time first column", records[0])
	}
	if records[1][3] != "Running" {
		t.Fatalf("state column = %q, want Running", records[1][3])
	}
}

func TestRunStatsLoggerNoopWithoutPath(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		RunStatsLogger("", time.Millisecond, func() StatsSnapshot { return StatsSnapshot{} }, nil, stop)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("RunStatsLogger with empty path did not return immediately")
	}
}
