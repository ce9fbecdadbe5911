package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/amqp"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/sheets"
	"finance/internal/storage"
)

// MonthReader is the read side of the month repository.
type MonthReader interface {
	List(ctx context.Context, userID int64) ([]storage.MonthSummary, error)
	Get(ctx context.Context, userID int64, year, month int) (*storage.MonthRecord, error)
}

// ExportWorker mirrors stored months into a snapshot sheet.
type ExportWorker struct {
	months MonthReader
	sheets sheets.SnapshotWriter
	userID int64
}

func NewExportWorker(months MonthReader, writer sheets.SnapshotWriter) *ExportWorker {
	return &ExportWorker{
		months: months,
		sheets: writer,
		userID: storage.LocalUserID,
	}
}

// HandleMonthEvent processes a single month event from AMQP. The stored
// month is re-read so the row always reflects the latest document.
func (w *ExportWorker) HandleMonthEvent(ctx context.Context, msg *amqp.MonthEventMessage) error {
	slog.InfoContext(ctx, "Processing month event",
		"key", msg.Key,
		"action", msg.Action)

	year, month, err := monthFromEvent(msg)
	if err != nil {
		return err
	}
	key := core.MonthKey(year, month)

	if msg.Action == amqp.ActionDeleted {
		return w.clear(ctx, key)
	}

	rec, err := w.months.Get(ctx, w.userID, year, month)
	if err != nil {
		return fmt.Errorf("get month %s: %w", key, err)
	}
	if rec == nil {
		// Deleted after the event was published.
		return w.clear(ctx, key)
	}

	return w.export(ctx, rec)
}

// monthFromEvent takes the month from the event key. Year and month
// fields, when present, must agree with it.
func monthFromEvent(msg *amqp.MonthEventMessage) (int, int, error) {
	year, month, err := core.ParseMonthKey(msg.Key)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", amqp.ErrMalformedEvent, err)
	}
	if (msg.Year != 0 || msg.Month != 0) && (msg.Year != year || msg.Month != month) {
		return 0, 0, fmt.Errorf("%w: key %s does not match %d/%d",
			amqp.ErrMalformedEvent, msg.Key, msg.Year, msg.Month)
	}
	return year, month, nil
}

// ExportAll writes a row for every stored month. It keeps going after a
// failed month and reports how many were exported.
func (w *ExportWorker) ExportAll(ctx context.Context) (int, error) {
	months, err := w.months.List(ctx, w.userID)
	if err != nil {
		return 0, fmt.Errorf("list months: %w", err)
	}

	exported, failed := 0, 0
	for _, m := range months {
		rec, err := w.months.Get(ctx, w.userID, m.Year, m.Month)
		if err == nil && rec == nil {
			continue
		}
		if err == nil {
			err = w.export(ctx, rec)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export month",
				"key", core.MonthKey(m.Year, m.Month),
				"error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Full export completed",
		"total", len(months),
		"exported", exported,
		"errors", failed)

	if failed > 0 {
		return exported, fmt.Errorf("export: %d of %d months failed", failed, len(months))
	}
	return exported, nil
}

// Run performs a full export immediately and then every interval until ctx
// is cancelled. Failed runs are logged and retried on the next tick.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("export interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ExportAll(ctx); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Periodic export incomplete", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ExportWorker) export(ctx context.Context, rec *storage.MonthRecord) error {
	key := core.MonthKey(rec.Year, rec.Month)
	snap := sheets.NewSnapshot(key, rec.Document, rec.UpdatedAt)
	if err := w.sheets.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("export month %s: %w", key, err)
	}

	slog.InfoContext(ctx, "Exported month snapshot",
		applog.FieldMonthKey, key,
		applog.FieldAssetCount, len(rec.Document.Assets),
		applog.FieldStatementCt, len(rec.Document.Statement),
		"net_worth", snap.NetWorth,
		"recovered", rec.Outcome == storage.ReadRecoveredCorrupt)
	return nil
}

func (w *ExportWorker) clear(ctx context.Context, key string) error {
	if err := w.sheets.ClearSnapshot(ctx, key); err != nil {
		return fmt.Errorf("clear month %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Cleared month snapshot", "key", key)
	return nil
}
