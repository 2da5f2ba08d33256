// Package sheets mirrors transactions to one Google Sheets tab with a header
// row and the columns id, title, amount, date, receipt, latitude, longitude.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"moneytrack/internal/core"
	"moneytrack/internal/remote"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Transactions"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ remote.Client = (*Client)(nil)

type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	// Endpoint overrides the API base URL and disables authentication.
	Endpoint string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	name := strings.TrimSpace(opts.SheetName)
	if name == "" {
		name = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, sheetName: name}, nil
}

// newSheetsService authenticates with service account credentials, inline
// JSON taking precedence over a file.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	if opts.Endpoint != "" {
		return gsheet.NewService(ctx,
			goption.WithEndpoint(opts.Endpoint),
			goption.WithoutAuthentication())
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set credentials file or inline JSON)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) Name() string { return "sheets" }

func (c *Client) List(ctx context.Context, page, limit int) ([]core.Transaction, error) {
	rows, err := c.readRows(ctx, "A2:G")
	if err != nil {
		return nil, err
	}
	all := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		tx, ok := parseRow(row)
		if !ok {
			slog.DebugContext(ctx, "Skipping unparseable sheet row", "row", i+2, "sheet", c.sheetName)
			continue
		}
		all = append(all, tx)
	}
	return core.Paginate(all, page, limit), nil
}

func (c *Client) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if c.svc == nil {
		return core.Transaction{}, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{formatRow(tx)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	tx.IsSynced = true
	return tx, nil
}

func (c *Client) Delete(ctx context.Context, id core.ID) error {
	rows, err := c.readRows(ctx, "A2:A")
	if err != nil {
		return err
	}
	idx := findRow(rows, id)
	if idx < 0 {
		return fmt.Errorf("delete %s: %w", id, remote.ErrNotFound)
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	// rows start below the header, so data row i lives at sheet index i+1
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(idx + 1),
					EndIndex:        int64(idx + 2),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", idx+2, c.sheetName, err)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", c.sheetName, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets(properties(sheetId,title))").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

func findRow(rows [][]any, id core.ID) int {
	want := id.String()
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i
		}
	}
	return -1
}

// formatRow renders tx as a sheet row. Data URLs exceed the cell size limit
// and are left out.
func formatRow(tx core.Transaction) []any {
	receipt := ""
	if tx.HasReceipt() && !strings.HasPrefix(*tx.Receipt, "data:") {
		receipt = *tx.Receipt
	}
	lat, lng := "", ""
	if tx.Location != nil {
		lat = strconv.FormatFloat(tx.Location.Latitude, 'f', -1, 64)
		lng = strconv.FormatFloat(tx.Location.Longitude, 'f', -1, 64)
	}
	return []any{tx.ID.String(), tx.Title, tx.Amount, tx.Date, receipt, lat, lng}
}

// parseRow is lenient: rows without a valid id or amount are skipped, bad
// coordinates just drop the location.
func parseRow(row []any) (core.Transaction, bool) {
	cols := toStrings(row)
	if len(cols) < 4 {
		return core.Transaction{}, false
	}
	id, err := core.ParseID(cols[0])
	if err != nil {
		return core.Transaction{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(cols[2], ",", "."), 64)
	if err != nil {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		ID:       id,
		Title:    cols[1],
		Amount:   amount,
		Date:     cols[3],
		IsSynced: true,
	}
	if r := safeGet(cols, 4); r != "" {
		tx.Receipt = &r
	}
	lat, errLat := strconv.ParseFloat(safeGet(cols, 5), 64)
	lng, errLng := strconv.ParseFloat(safeGet(cols, 6), 64)
	if errLat == nil && errLng == nil {
		loc := core.Location{Latitude: lat, Longitude: lng}
		if loc.Validate() == nil {
			tx.Location = &loc
		}
	}
	return tx, true
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
