package core

// ComputeTotals returns a copy of doc whose derived totals reflect its
// assets. Totals supplied by the caller are ignored.
func ComputeTotals(doc Document) Document {
	var netWorth float64
	for _, a := range doc.Assets {
		netWorth += a.Total.Float()
	}
	doc.Totals = Totals{NetWorth: Amount(netWorth)}
	return doc
}
