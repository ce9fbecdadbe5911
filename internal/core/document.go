package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	StatementCredit = "credit"
	StatementDebit  = "debit"
)

type (
	// Document is the JSON payload stored for one calendar month.
	Document struct {
		Month     string           `json:"month"`
		Assets    []Asset          `json:"assets"`
		Statement []StatementEntry `json:"statement"`
		Totals    Totals           `json:"totals"`
		Meta      Meta             `json:"meta"`
	}

	// Asset is a holding as of the month's snapshot.
	Asset struct {
		ID          Text    `json:"id"`
		Name        Text    `json:"name"`
		Location    Text    `json:"location"`
		Type        Text    `json:"type"`
		Institution Text    `json:"institution"`
		Quantity    *Amount `json:"quantity"`
		Price       *Amount `json:"price"`
		Total       Amount  `json:"total"`
		LastUpdate  Text    `json:"lastUpdate"`
	}

	// StatementEntry is one bank statement row.
	StatementEntry struct {
		ID          Text   `json:"id"`
		Date        Text   `json:"date"`
		Description Text   `json:"description"`
		Category    Text   `json:"category"`
		Amount      Amount `json:"amount"`
		Type        Text   `json:"type"` // credit or debit
		Account     Text   `json:"account"`
		CreatedAt   Text   `json:"createdAt"`
		LastUpdate  Text   `json:"lastUpdate"`
	}

	Totals struct {
		NetWorth Amount `json:"netWorth"`
	}

	Meta struct {
		CopiedFrom *Text `json:"copiedFrom"`
		Notes      Text  `json:"notes"`
	}
)

// ErrNotObject is returned when a stored payload is valid JSON but not an
// object.
var ErrNotObject = errors.New("month document is not a JSON object")

// UnmarshalJSON accepts any object. Parts with an unexpected shape are left
// empty and rows that are not objects are skipped; only a payload that is
// not a JSON object fails.
func (d *Document) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || parts == nil {
		return ErrNotObject
	}

	var doc Document
	decodePart(parts["month"], &doc.Month)
	doc.Assets = decodeRows[Asset](parts["assets"])
	doc.Statement = decodeRows[StatementEntry](parts["statement"])
	decodePart(parts["totals"], &doc.Totals)
	decodePart(parts["meta"], &doc.Meta)
	*d = doc
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func decodePart[T any](raw json.RawMessage, dst *T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func decodeRows[T any](raw json.RawMessage) []T {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return nil
	}
	rows := make([]T, 0, len(items))
	for _, item := range items {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			continue
		}
		var row T
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// DefaultMonthDocument returns the empty state for a month that has no
// persisted data, or whose persisted data could not be read.
func DefaultMonthDocument(year, month int) Document {
	return Document{
		Month:     MonthKey(year, month),
		Assets:    []Asset{},
		Statement: []StatementEntry{},
		Totals:    Totals{NetWorth: 0},
		Meta:      Meta{CopiedFrom: nil, Notes: Text{}},
	}
}

// FillDefaults replaces missing top-level parts of a stored document with
// their empty values. This is a merge, not a schema check.
func FillDefaults(doc Document, year, month int) Document {
	if doc.Month == "" {
		doc.Month = MonthKey(year, month)
	}
	if doc.Assets == nil {
		doc.Assets = []Asset{}
	}
	if doc.Statement == nil {
		doc.Statement = []StatementEntry{}
	}
	return doc
}

// Normalize prepares a caller-supplied document for storage: missing parts
// get their defaults, the month field is pinned to the record key and rows
// without an id get a fresh one. It does not validate anything else.
func Normalize(doc Document, year, month int) Document {
	doc = FillDefaults(doc.Clone(), year, month)
	doc.Month = MonthKey(year, month)
	for i := range doc.Assets {
		if doc.Assets[i].ID.IsEmpty() {
			doc.Assets[i].ID = NewText(NewItemID())
		}
	}
	for i := range doc.Statement {
		if doc.Statement[i].ID.IsEmpty() {
			doc.Statement[i].ID = NewText(NewItemID())
		}
	}
	return doc
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Assets != nil {
		out.Assets = make([]Asset, len(d.Assets))
		for i, a := range d.Assets {
			a.Quantity = cloneAmount(a.Quantity)
			a.Price = cloneAmount(a.Price)
			out.Assets[i] = a
		}
	}
	if d.Statement != nil {
		out.Statement = make([]StatementEntry, len(d.Statement))
		copy(out.Statement, d.Statement)
	}
	if d.Meta.CopiedFrom != nil {
		from := *d.Meta.CopiedFrom
		out.Meta.CopiedFrom = &from
	}
	return out
}

func cloneAmount(a *Amount) *Amount {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}

// DecodeDocument parses a stored payload. Only a syntax error or a
// non-object payload fails. Missing top-level parts are left empty;
// callers run FillDefaults or Normalize before handing the document out.
func DecodeDocument(data []byte) (Document, error) {
	if isNull(data) {
		return Document{}, fmt.Errorf("decode month document: %w", ErrNotObject)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode month document: %w", err)
	}
	return doc, nil
}

// EncodeDocument serializes a document for storage.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode month document: %w", err)
	}
	return data, nil
}

// NewItemID generates an id for an asset or statement row.
func NewItemID() string {
	return uuid.NewString()
}
