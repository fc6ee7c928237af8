package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"billsplit/internal/core"
)

// fakeSheets serves the handful of Sheets endpoints the client uses,
// backed by an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]interface{}
	deletes []int64
	reads   int
	appends int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.reads++
		rows := f.rows
		if strings.HasSuffix(path, "A1:F1") && len(rows) > 1 {
			rows = rows[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": rows})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr struct{ Values [][]interface{} }
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(vr.Values, f.rows...)
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr struct{ Values [][]interface{} }
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appends++
		f.rows = append(f.rows, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRows": 1}})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						SheetID    int64 `json:"sheetId"`
						StartIndex int64 `json:"startIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		for _, rq := range req.Requests {
			i := rq.DeleteDimension.Range.StartIndex
			f.deletes = append(f.deletes, i)
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"sheets": []any{
				map[string]any{"properties": map[string]any{"sheetId": 0, "title": "Other"}},
				map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Expenses"}},
			},
		})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func expense(id int64, name string) core.Expense {
	return core.Expense{
		ID:        id,
		Name:      name,
		Amount:    500,
		Category:  core.Food,
		EventName: "Goa",
		CreatedAt: time.Date(2025, 1, 2, 13, 0, 0, 0, time.UTC),
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/does/not/exist.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureHeaderAndAppend(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	ctx := context.Background()

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header again: %v", err)
	}
	if err := c.AppendExpense(ctx, expense(1, "Lunch")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendExpense(ctx, expense(1, "Lunch")); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}

	if len(f.rows) != 2 {
		t.Fatalf("rows = %v", f.rows)
	}
	if got := f.rows[0][0]; got != "id" {
		t.Fatalf("header = %v", f.rows[0])
	}
	if got := f.rows[1][3]; got != "Lunch" {
		t.Fatalf("row = %v", f.rows[1])
	}
}

func TestDeleteExpense(t *testing.T) {
	f := &fakeSheets{rows: [][]interface{}{header(), {"1"}, {"2"}, {"3"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	if err := c.DeleteExpense(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.deletes) != 1 || f.deletes[0] != 2 {
		t.Fatalf("deletes = %v", f.deletes)
	}
	if err := c.DeleteExpense(ctx, 99); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if len(f.deletes) != 1 {
		t.Fatal("missing row should not trigger a batch update")
	}
}

func TestIndexOfID(t *testing.T) {
	values := [][]interface{}{{"id"}, {}, {float64(4)}, {" 12 "}}
	tests := []struct {
		id   int64
		want int
	}{
		{4, 2},
		{12, 3},
		{7, -1},
	}
	for _, tt := range tests {
		if got := indexOfID(values, tt.id); got != tt.want {
			t.Errorf("indexOfID(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestBulkOperationsReadColumnOnce(t *testing.T) {
	f := &fakeSheets{rows: [][]interface{}{header(), {"1"}, {"2"}, {"3"}, {"4"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	ids, err := c.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 4 || ids[0] != 1 || ids[3] != 4 {
		t.Fatalf("ids = %v", ids)
	}

	var missing []core.Expense
	for id := int64(5); id <= 50; id++ {
		missing = append(missing, expense(id, "Snack"))
	}
	if err := c.AppendExpenses(ctx, missing); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.DeleteExpenses(ctx, []int64{2, 4, 99}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if f.reads != 2 {
		t.Errorf("values reads = %d, want 2", f.reads)
	}
	if f.appends != 1 {
		t.Errorf("append requests = %d, want 1", f.appends)
	}
	if len(f.deletes) != 2 || f.deletes[0] != 4 || f.deletes[1] != 2 {
		t.Errorf("deletes = %v, want bottom-up [4 2]", f.deletes)
	}

	after := parseIDs(f.rows)
	if len(after) != 48 || after[0] != 1 || after[1] != 3 || after[2] != 5 {
		t.Fatalf("ids after reconcile = %v", after[:min(len(after), 5)])
	}
}

func TestParseIDs(t *testing.T) {
	values := [][]interface{}{{"id"}, {}, {float64(4)}, {" 12 "}, {float64(1.5)}, {"x"}}
	got := parseIDs(values)
	if len(got) != 2 || got[0] != 4 || got[1] != 12 {
		t.Fatalf("parseIDs = %v, want [4 12]", got)
	}
}
