package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ports "finance/internal/sheets"
)

// findKeyRow returns the 1-based row whose first cell equals key, or 0.
// The header row never matches.
func findKeyRow(values [][]any, key string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i + 1
		}
	}
	return 0
}

func snapshotValues(s ports.Snapshot) []any {
	updated := ""
	if !s.UpdatedAt.IsZero() {
		updated = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return []any{s.Key, s.NetWorth, s.Assets, s.StatementRows, updated}
}

func parseSnapshotRow(row []any) (ports.Snapshot, bool) {
	cols := toStrings(row)
	if len(cols) == 0 || cols[0] == "" {
		return ports.Snapshot{}, false
	}

	s := ports.Snapshot{Key: cols[0]}
	if v := safeGet(cols, 1); v != "" {
		s.NetWorth, _ = strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	}
	s.Assets, _ = strconv.Atoi(safeGet(cols, 2))
	s.StatementRows, _ = strconv.Atoi(safeGet(cols, 3))
	if v := safeGet(cols, 4); v != "" {
		s.UpdatedAt, _ = time.Parse(time.RFC3339, v)
	}
	return s, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
