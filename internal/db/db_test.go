package db

import (
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanwedge/internal/scanner"
	"github.com/banshee-data/scanwedge/internal/session"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func scanAt(id, text string, at time.Time) session.ScanResult {
	return session.ScanResult{
		ID:           id,
		Raw:          []byte("\x02" + text),
		Payload:      []byte(text),
		Text:         text,
		CodePoints:   []rune(text),
		Reason:       scanner.FinalizedByTerminator,
		At:           at,
		EmitDuration: 12 * time.Millisecond,
	}
}

// TestPragmasApplied verifies that essential PRAGMAs are set on open
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous) // NORMAL

	var tempStore int
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 2, tempStore) // MEMORY
}

func TestRecordAndRecentScans(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordScan(scanAt("a", "first", base), nil))
	second := scanAt("b", "日本", base.Add(time.Second))
	second.Reason = scanner.FinalizedByTimeout
	require.NoError(t, db.RecordScan(second, errors.New("keyboard gone")))

	scans, err := db.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, scans, 2)

	newest := scans[0]
	assert.Equal(t, "b", newest.ID)
	assert.Equal(t, "日本", newest.Text)
	assert.Equal(t, []byte("日本"), newest.Payload)
	assert.Equal(t, "timeout", newest.Reason)
	assert.Equal(t, 2, newest.CodePoints)
	assert.Equal(t, len(second.Raw), newest.RawBytes)
	assert.Equal(t, "keyboard gone", newest.EmitError)
	assert.InDelta(t, 12.0, newest.EmitMillis, 1e-9)
	assert.WithinDuration(t, base.Add(time.Second), newest.ScannedAt, time.Microsecond)

	assert.Equal(t, "a", scans[1].ID)
	assert.Equal(t, "terminator", scans[1].Reason)
	assert.Empty(t, scans[1].EmitError)
}

func TestRecentScansLimit(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.RecordScan(scanAt(id, id, base.Add(time.Duration(i)*time.Second)), nil))
	}

	scans, err := db.RecentScans(2)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "c", scans[0].ID)
	assert.Equal(t, "b", scans[1].ID)
}

func TestRecordEmptyPayload(t *testing.T) {
	db := newTestDB(t)
	res := session.ScanResult{ID: "empty", Raw: []byte{0x01}, At: time.Now()}
	require.NoError(t, db.RecordScan(res, nil))

	scans, err := db.RecentScans(1)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Empty(t, scans[0].Payload)
	assert.Equal(t, 0, scans[0].CodePoints)
}

func TestRecordDuplicateID(t *testing.T) {
	db := newTestDB(t)
	res := scanAt("dup", "x", time.Now())
	require.NoError(t, db.RecordScan(res, nil))
	assert.Error(t, db.RecordScan(res, nil))
}

func TestScanCountsByMinute(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(-2 * time.Hour), // before the window
		base.Add(5 * time.Second),
		base.Add(50 * time.Second),
		base.Add(3*time.Minute + time.Second),
	}
	for i, at := range times {
		require.NoError(t, db.RecordScan(scanAt(string(rune('a'+i)), "x", at), nil))
	}

	counts, err := db.ScanCountsByMinute(base)
	require.NoError(t, err)
	want := []MinuteCount{
		{Minute: base, Count: 2},
		{Minute: base.Add(3 * time.Minute), Count: 1},
	}
	assert.Equal(t, want, counts)
}

func TestObserverRecordsCompletedScans(t *testing.T) {
	db := newTestDB(t)
	obs := db.Observer()

	res := scanAt("obs", "hello", time.Now())
	// the pre-typing callback stores nothing
	obs.OnScanResult(res)
	scans, err := db.RecentScans(10)
	require.NoError(t, err)
	assert.Empty(t, scans)

	obs.(session.CompletionObserver).OnScanComplete(res, nil)
	scans, err = db.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "hello", scans[0].Text)
}

func TestMigrations(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(Migrations()))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// already at latest
	require.NoError(t, db.MigrateUp(Migrations()))

	require.NoError(t, db.MigrateDown(Migrations()))
	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='scans'").Scan(&n))
	assert.Zero(t, n)
}

func TestMigrateForce_ClosedDB(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "force_closed.db"))
	require.NoError(t, err)

	migrationsFS := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE IF EXISTS t1;")},
	}
	require.NoError(t, db.MigrateUp(migrationsFS))
	db.Close()

	assert.Error(t, db.MigrateForce(migrationsFS, 1))
}
