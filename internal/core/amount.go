package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value stored inside month documents.
//
// Documents are written by the UI and may carry totals as numbers, numeric
// strings or nothing at all. Decoding never fails: anything that does not
// read as a finite number becomes 0, the same way the dashboard coerces
// values when it sums them.
type Amount float64

// Float returns the amount as a float64.
func (a Amount) Float() float64 {
	if math.IsNaN(float64(a)) || math.IsInf(float64(a), 0) {
		return 0
	}
	return float64(a)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Float())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount(coerceNumber(data))
	return nil
}

func coerceNumber(data []byte) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}

	var v float64
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		v = f
	case 't':
		return 1
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return 0
		}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
