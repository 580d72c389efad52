package diag

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogEventAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := NewFileWriter(path)
	require.NoError(t, err)

	w.LogEvent("indexer.start", "main", map[string]any{"novelty_bytes": float64(1024)})
	w.LogEvent("indexer.done", "main", nil)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []Event
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		lines = append(lines, ev)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "indexer.start", lines[0].Code)
	require.Equal(t, "main", lines[0].Ledger)
	require.Equal(t, "indexer.done", lines[1].Code)
}

func TestNilWriterLogEventIsNoop(t *testing.T) {
	var w *Writer
	require.NotPanics(t, func() { w.LogEvent("x", "y", nil) })
}
