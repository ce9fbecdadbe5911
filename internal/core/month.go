package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidMonthKey = errors.New("invalid month key")

// MonthKey formats the canonical month identifier, e.g. MonthKey(2024, 3) == "2024-03".
// It is the key used by the UI, by copy linkage and by exports.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// ParseMonthKey is the inverse of MonthKey.
func ParseMonthKey(key string) (year, month int, err error) {
	y, m, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok || len(m) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	year, err = strconv.Atoi(y)
	if err != nil || year < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	month, err = strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	return year, month, nil
}

// PreviousMonth returns the calendar month before (year, month).
// January rolls back to December of the previous year.
func PreviousMonth(year, month int) (int, int) {
	if month <= 1 {
		return year - 1, 12
	}
	return year, month - 1
}
