package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ports "finance/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors month snapshots into one sheet, one row per month key.
// Row 1 holds the header; column A holds the key.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes the read-then-write of row placement.
	mu sync.Mutex
}

// Ensure interface conformance
var (
	_ ports.SnapshotWriter = (*Client)(nil)
	_ ports.SnapshotReader = (*Client)(nil)
)

var header = []any{"Month", "Net worth", "Assets", "Statement rows", "Updated at"}

// NewFromEnv creates a Sheets client authenticated with the service account
// found in GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	creds, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheetName)
	return New(svc, spreadsheetID, sheetName), nil
}

func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "NetWorth"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// UpsertSnapshot overwrites the row holding s.Key or appends a new one.
func (c *Client) UpsertSnapshot(ctx context.Context, s ports.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.keyColumn(ctx)
	if err != nil {
		return err
	}

	row := findKeyRow(keys, s.Key)
	if row == 0 {
		if len(keys) == 0 {
			if err := c.writeRow(ctx, 1, header); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			keys = append(keys, header[:1])
		}
		row = len(keys) + 1
	}

	if err := c.writeRow(ctx, row, snapshotValues(s)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.Key, err)
	}
	return nil
}

// ClearSnapshot empties the row holding key, if any.
func (c *Client) ClearSnapshot(ctx context.Context, key string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.keyColumn(ctx)
	if err != nil {
		return err
	}
	row := findKeyRow(keys, key)
	if row == 0 {
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rowRange(row), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear snapshot %s: %w", key, err)
	}
	return nil
}

// ListSnapshots reads every non-empty data row.
func (c *Client) ListSnapshots(ctx context.Context) ([]ports.Snapshot, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A2:E", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	out := make([]ports.Snapshot, 0, len(resp.Values))
	for _, row := range resp.Values {
		if s, ok := parseSnapshotRow(row); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Client) keyColumn(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(row), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:E%d", c.sheetName, row, row)
}
