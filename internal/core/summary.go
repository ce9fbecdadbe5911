package core

import "strings"

const unknownBucket = "unknown"

// Breakdown is the dashboard view of a single month.
type Breakdown struct {
	Month           string             `json:"month"`
	NetWorth        float64            `json:"netWorth"`
	ByInstitution   map[string]float64 `json:"byInstitution"`
	ByType          map[string]float64 `json:"byType"`
	StatementCredit float64            `json:"statementCredit"`
	StatementDebit  float64            `json:"statementDebit"`
	StatementNet    float64            `json:"statementNet"`
}

// Summarize aggregates a month document for display. Assets without an
// institution or type are grouped under "unknown". Statement rows count as
// debits unless marked as credit; amounts are taken by absolute value.
func Summarize(doc Document) Breakdown {
	b := Breakdown{
		Month:         doc.Month,
		ByInstitution: make(map[string]float64),
		ByType:        make(map[string]float64),
	}

	for _, a := range doc.Assets {
		total := a.Total.Float()
		b.NetWorth += total
		b.ByInstitution[bucket(a.Institution.String())] += total
		b.ByType[bucket(a.Type.String())] += total
	}

	for _, e := range doc.Statement {
		amount := e.Amount.Float()
		if amount < 0 {
			amount = -amount
		}
		if strings.EqualFold(strings.TrimSpace(e.Type.String()), StatementCredit) {
			b.StatementCredit += amount
		} else {
			b.StatementDebit += amount
		}
	}
	b.StatementNet = b.StatementCredit - b.StatementDebit

	return b
}

func bucket(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return unknownBucket
	}
	return name
}
