package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/core"
	applog "finance/internal/log"
)

// ReadOutcome tells how a month document was obtained.
type ReadOutcome int

const (
	// ReadOK means the stored payload was decoded as is.
	ReadOK ReadOutcome = iota
	// ReadRecoveredCorrupt means the stored payload could not be decoded and
	// an empty document was returned in its place. The row is left untouched.
	ReadRecoveredCorrupt
)

func (o ReadOutcome) String() string {
	switch o {
	case ReadOK:
		return "ok"
	case ReadRecoveredCorrupt:
		return "recovered_corrupt"
	default:
		return "unknown"
	}
}

// CopyOutcome tells what CopyFromPrevious did.
type CopyOutcome int

const (
	CopyCreatedFromPrevious CopyOutcome = iota
	CopyCreatedEmpty
	// CopyAlreadyExists means the target month was already stored; nothing was written.
	CopyAlreadyExists
)

func (o CopyOutcome) String() string {
	switch o {
	case CopyCreatedFromPrevious:
		return "created_from_previous"
	case CopyCreatedEmpty:
		return "created_empty"
	case CopyAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type (
	// MonthSummary is a month listing entry without its payload.
	MonthSummary struct {
		ID         int64
		Year       int
		Month      int
		UpdatedAt  time.Time
		CopiedFrom *string
	}

	MonthRecord struct {
		ID         int64
		UserID     int64
		Year       int
		Month      int
		Document   core.Document
		CopiedFrom *string
		UpdatedAt  time.Time
		Outcome    ReadOutcome
	}

	UpsertResult struct {
		ID  int64
		Key string
	}

	CopyResult struct {
		ID  int64
		Key string
		// Source is the key of the month the document was copied from, empty
		// when the month was created empty or already existed.
		Source  string
		Outcome CopyOutcome
	}
)

// MonthRepository stores one document per (user, year, month).
type MonthRepository struct {
	db *DB
}

func NewMonthRepository(db *DB) *MonthRepository {
	return &MonthRepository{db: db}
}

// List returns the user's months, most recent first.
func (r *MonthRepository) List(ctx context.Context, userID int64) ([]MonthSummary, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT id, year, month, updated_at, copied_from
		FROM months
		WHERE user_id = ?
		ORDER BY year DESC, month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	months := make([]MonthSummary, 0)
	for rows.Next() {
		var (
			s          MonthSummary
			updatedAt  string
			copiedFrom sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Year, &s.Month, &updatedAt, &copiedFrom); err != nil {
			return nil, fmt.Errorf("scan month summary: %w", err)
		}
		s.UpdatedAt = parseTimestamp(updatedAt)
		s.CopiedFrom = nullableString(copiedFrom)
		months = append(months, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate months: %w", err)
	}

	return months, nil
}

// Get returns the stored month or nil when it does not exist. A payload
// that cannot be decoded is replaced by an empty document and reported
// through the record's Outcome instead of an error.
func (r *MonthRepository) Get(ctx context.Context, userID int64, year, month int) (*MonthRecord, error) {
	var (
		rec        MonthRecord
		data       string
		copiedFrom sql.NullString
		updatedAt  string
	)
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT id, user_id, year, month, data_json, copied_from, updated_at
		FROM months
		WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month).
		Scan(&rec.ID, &rec.UserID, &rec.Year, &rec.Month, &data, &copiedFrom, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get month %s: %w", core.MonthKey(year, month), err)
	}

	rec.CopiedFrom = nullableString(copiedFrom)
	rec.UpdatedAt = parseTimestamp(updatedAt)

	doc, err := core.DecodeDocument([]byte(data))
	if err != nil {
		slog.WarnContext(ctx, "Stored month document is unreadable, using empty document",
			"key", core.MonthKey(year, month),
			"id", rec.ID,
			"error", err)
		rec.Document = core.DefaultMonthDocument(year, month)
		rec.Outcome = ReadRecoveredCorrupt
		return &rec, nil
	}

	rec.Document = core.FillDefaults(doc, year, month)
	rec.Outcome = ReadOK
	return &rec, nil
}

// Upsert replaces the month's document, creating the month if needed.
// Totals are recomputed from the assets before writing. An existing row
// keeps its id and copied_from; a new row gets a new id.
func (r *MonthRepository) Upsert(ctx context.Context, userID int64, year, month int, doc core.Document) (UpsertResult, error) {
	key := core.MonthKey(year, month)
	doc = core.ComputeTotals(core.Normalize(doc, year, month))

	data, err := core.EncodeDocument(doc)
	if err != nil {
		return UpsertResult{}, err
	}

	var id int64
	err = r.db.sql.QueryRowContext(ctx, `
		INSERT INTO months (user_id, year, month, data_json, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			data_json = excluded.data_json,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`, userID, year, month, string(data)).Scan(&id)
	if err != nil {
		return UpsertResult{}, wrapWriteError("upsert month "+key, err)
	}

	slog.InfoContext(ctx, "Month saved",
		"id", id,
		"key", key,
		"assets", len(doc.Assets),
		"statement_rows", len(doc.Statement),
		"net_worth", doc.Totals.NetWorth.Float())

	return UpsertResult{ID: id, Key: key}, nil
}

// CopyFromPrevious creates the month from its predecessor's document, or
// empty when there is no predecessor. It never overwrites: if the month is
// already stored, the existing id is returned with CopyAlreadyExists.
func (r *MonthRepository) CopyFromPrevious(ctx context.Context, userID int64, year, month int) (CopyResult, error) {
	key := core.MonthKey(year, month)
	prevYear, prevMonth := core.PreviousMonth(year, month)
	prevKey := core.MonthKey(prevYear, prevMonth)

	prev, err := r.Get(ctx, userID, prevYear, prevMonth)
	if err != nil {
		return CopyResult{}, fmt.Errorf("load previous month %s: %w", prevKey, err)
	}

	var (
		doc        core.Document
		copiedFrom *string
		result     = CopyResult{Key: key}
	)
	if prev != nil {
		doc = prev.Document.Clone()
		from := core.NewText(prevKey)
		doc.Meta.CopiedFrom = &from
		copiedFrom = &prevKey
		result.Source = prevKey
		result.Outcome = CopyCreatedFromPrevious
	} else {
		doc = core.DefaultMonthDocument(year, month)
		result.Outcome = CopyCreatedEmpty
	}
	doc = core.ComputeTotals(core.Normalize(doc, year, month))

	data, err := core.EncodeDocument(doc)
	if err != nil {
		return CopyResult{}, err
	}

	// Insert without checking first; the unique key decides who wins.
	res, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO months (user_id, year, month, data_json, copied_from, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		userID, year, month, string(data), copiedFrom)
	if err != nil {
		if !isUniqueViolation(err) {
			return CopyResult{}, wrapWriteError("copy month "+key, err)
		}

		id, lookupErr := r.lookupID(ctx, userID, year, month)
		if lookupErr != nil {
			return CopyResult{}, fmt.Errorf("copy month %s: find existing: %w", key, lookupErr)
		}

		slog.InfoContext(ctx, "Month already exists, copy skipped", "id", id, "key", key)
		return CopyResult{ID: id, Key: key, Outcome: CopyAlreadyExists}, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return CopyResult{}, fmt.Errorf("copy month %s: last insert id: %w", key, err)
	}
	result.ID = id

	slog.InfoContext(ctx, "Month created by copy",
		applog.FieldMonthID, id,
		applog.FieldMonthKey, key,
		applog.FieldCopiedFrom, result.Source,
		"outcome", result.Outcome.String())

	return result, nil
}

// Delete removes the month. It reports whether a row existed.
func (r *MonthRepository) Delete(ctx context.Context, userID int64, year, month int) (bool, error) {
	res, err := r.db.sql.ExecContext(ctx,
		`DELETE FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month)
	if err != nil {
		return false, fmt.Errorf("delete month %s: %w", core.MonthKey(year, month), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete month %s: rows affected: %w", core.MonthKey(year, month), err)
	}

	if n > 0 {
		slog.InfoContext(ctx, "Month deleted", "key", core.MonthKey(year, month))
	}
	return n > 0, nil
}

func (r *MonthRepository) lookupID(ctx context.Context, userID int64, year, month int) (int64, error) {
	var id int64
	err := r.db.sql.QueryRowContext(ctx,
		`SELECT id FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
