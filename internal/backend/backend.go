// Package backend picks where the worker exports month snapshots.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finance/internal/config"
	"finance/internal/sheets"
	gsheet "finance/internal/sheets/google"
	"finance/internal/sheets/memory"
)

// Type names an export destination.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) IsValid() bool {
	return t == SheetsBackend || t == MemoryBackend
}

func (t Type) String() string {
	return string(t)
}

// Config holds what the factory needs to build a writer.
type Config struct {
	Type                Type
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// FromAppConfig resolves the export destination. An unset EXPORT_BACKEND
// means sheets when a spreadsheet id is configured, memory otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.ExportBackend)
	if t == "" {
		t = MemoryBackend
		if appConfig.GoogleSpreadsheetID != "" {
			t = SheetsBackend
		}
	}

	cfg := Config{
		Type:                t,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SheetsBackend {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for sheets backend")
		}
	}
	return nil
}

// Result is a snapshot store usable for both exporting and reading back.
type Result interface {
	sheets.SnapshotWriter
	sheets.SnapshotReader
}

// Factory builds the snapshot store for a Config.
type Factory struct {
	logger *slog.Logger
	// newSheets is replaceable in tests.
	newSheets func(ctx context.Context, spreadsheetID, sheetName string) (Result, error)
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		logger: logger,
		newSheets: func(ctx context.Context, id, name string) (Result, error) {
			return gsheet.NewFromEnv(ctx, id, name)
		},
	}
}

func (f *Factory) Create(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SheetsBackend:
		client, err := f.newSheets(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets export",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
		return client, nil
	default:
		f.logger.Info("Initialized memory export")
		return memory.New(), nil
	}
}
