// Package google mirrors the ledger into a Google Sheets spreadsheet, one
// row per expense keyed by the ledger id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billsplit/internal/core"
	"billsplit/internal/log"
)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// New authenticates with a service account and returns a client for one
// sheet. Extra options are passed to the Sheets service.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		creds, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Expenses"
	}
	logger.InfoContext(ctx, "Sheets client ready", log.FieldSheetsRef, cfg.SpreadsheetID, "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet, logger: logger}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// EnsureHeader writes the column titles when the first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{header()}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AppendExpense adds a row for e unless one with the same id exists, so
// redelivered messages do not duplicate rows.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) error {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	if indexOfID(ids, e.ID) >= 0 {
		c.logger.DebugContext(ctx, "Row already present, skipping append", log.FieldExpenseID, e.ID)
		return nil
	}
	if err := c.appendRows(ctx, []core.Expense{e}); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Expense row appended", log.FieldExpenseID, e.ID)
	return nil
}

// AppendExpenses appends one row per expense in a single request. It does
// not check for existing rows; callers reconcile against IDs first.
func (c *Client) AppendExpenses(ctx context.Context, es []core.Expense) error {
	if len(es) == 0 {
		return nil
	}
	if err := c.appendRows(ctx, es); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Expense rows appended", log.FieldCount, len(es))
	return nil
}

// DeleteExpense removes the row holding id. A missing row is not an error.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.DeleteExpenses(ctx, []int64{id})
}

// DeleteExpenses removes the rows holding ids with one read of the id
// column and one batch update. Ids without a row are ignored.
func (c *Client) DeleteExpenses(ctx context.Context, ids []int64) error {
	column, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	var rows []int
	for _, id := range ids {
		if row := indexOfID(column, id); row >= 0 {
			rows = append(rows, row)
		} else {
			c.logger.DebugContext(ctx, "No row to delete", log.FieldExpenseID, id)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	// Bottom-up so earlier deletions do not shift later indices.
	slices.Sort(rows)
	slices.Reverse(rows)
	rows = slices.Compact(rows)
	reqs := make([]*gsheet.Request, len(rows))
	for i, row := range rows {
		reqs[i] = &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row) + 1,
				},
			},
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %d rows: %w", len(rows), err)
	}
	c.logger.InfoContext(ctx, "Expense rows deleted", log.FieldCount, len(rows))
	return nil
}

// IDs returns every expense id present in column A, in sheet order.
func (c *Client) IDs(ctx context.Context) ([]int64, error) {
	column, err := c.readIDColumn(ctx)
	if err != nil {
		return nil, err
	}
	return parseIDs(column), nil
}

func (c *Client) appendRows(ctx context.Context, es []core.Expense) error {
	values := make([][]interface{}, len(es))
	for i, e := range es {
		values[i] = expenseToRow(e)
	}
	rng := fmt.Sprintf("%s!A:F", c.sheet)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	return nil
}

func (c *Client) readIDColumn(ctx context.Context) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return resp.Values, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}
