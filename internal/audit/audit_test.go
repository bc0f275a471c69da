package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2026, time.October, 19, 14, 5, 9, 0, time.Local)

func TestLine(t *testing.T) {
	assert.Equal(t, "Exchange command executed on 2026-10-19 14:05:09", Line(stamp))
}

func TestFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange_logs.txt")
	log := NewFileLog(path)

	require.NoError(t, log.Record(context.Background(), stamp))
	require.NoError(t, log.Record(context.Background(), stamp.Add(time.Minute)))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Equal(t, []string{
		"Exchange command executed on 2026-10-19 14:05:09",
		"Exchange command executed on 2026-10-19 14:06:09",
	}, lines)
}

func TestFileLogUnwritablePath(t *testing.T) {
	log := NewFileLog(filepath.Join(t.TempDir(), "missing", "dir", "log.txt"))

	err := log.Record(context.Background(), stamp)
	assert.Error(t, err)
}

func TestFileLogCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := NewFileLog(filepath.Join(t.TempDir(), "log.txt"))
	assert.ErrorIs(t, log.Record(ctx, stamp), context.Canceled)
}

func TestSQLiteLog(t *testing.T) {
	log, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	ctx := context.Background()
	require.NoError(t, log.Record(ctx, stamp))
	require.NoError(t, log.Record(ctx, stamp.Add(time.Second)))

	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Exchange command executed on 2026-10-19 14:05:09",
		"Exchange command executed on 2026-10-19 14:05:10",
	}, entries)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fileLog, err := Open(Config{Driver: DriverFile, Path: filepath.Join(dir, "a.txt")})
	require.NoError(t, err)
	assert.IsType(t, &FileLog{}, fileLog)

	sqliteLog, err := Open(Config{Driver: DriverSQLite, Path: filepath.Join(dir, "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteLog{}, sqliteLog)
	require.NoError(t, sqliteLog.Close())

	_, err = Open(Config{Driver: "kafka"})
	assert.Error(t, err)
}
