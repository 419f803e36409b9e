package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"maaser/internal/core"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets emulates the values endpoints of one spreadsheet.
type fakeSheets struct {
	mu      sync.Mutex
	sheets  map[string][][]any
	gets    int
	updates int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	sheet, cells, _ := strings.Cut(rng, "!")

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.sheets[sheet]

	switch r.Method {
	case http.MethodGet:
		f.gets++
		values := rows
		if cells == "I:I" {
			values = make([][]any, 0, len(rows))
			for _, row := range rows {
				if len(row) > 8 {
					values = append(values, []any{row[8]})
				} else {
					values = append(values, []any{})
				}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case http.MethodPut:
		f.updates++
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		start, _ := strconv.Atoi(strings.TrimPrefix(strings.SplitN(cells, ":", 2)[0], "A"))
		for i, row := range vr.Values {
			n := start - 1 + i
			for len(rows) <= n {
				rows = append(rows, nil)
			}
			rows[n] = row
		}
		f.sheets[sheet] = rows
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheets: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return newClient(svc, Config{SpreadsheetID: "sid", SheetName: "Ledger"}), fake
}

func testEntry(id string, date core.Date, occurrence int) core.LedgerEntry {
	return core.LedgerEntry{
		ID:                 id,
		Date:               date,
		SourceObligationID: "ob-1",
		OccurrenceNumber:   occurrence,
		Payload: core.Payload{
			Amount:      decimal.RequireFromString("365"),
			Currency:    "ILS",
			Description: "Monthly maaser",
			Category:    "Charity",
			Type:        core.TypeDonation,
			IsChomesh:   true,
		},
	}
}

func TestNewFromConfig_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromConfig_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromConfig(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromConfig_UnreadableCredentialsFile(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{
		SpreadsheetID:      "test-id",
		ServiceAccountFile: t.TempDir() + "/missing.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestClient_AppendValidation(t *testing.T) {
	c := newClient(nil, Config{SpreadsheetID: "test"})

	invalid := testEntry("e1", core.NewDate(2024, 1, 31), 1)
	invalid.Payload.Amount = decimal.Zero
	if _, err := c.Append(context.Background(), invalid); err == nil {
		t.Fatal("expected validation error")
	}

	noID := testEntry("", core.NewDate(2024, 1, 31), 1)
	if _, err := c.Append(context.Background(), noID); err == nil {
		t.Fatal("expected error for missing entry id")
	}

	valid := testEntry("e1", core.NewDate(2024, 1, 31), 1)
	if _, err := c.Append(context.Background(), valid); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}

func TestClient_AppendWritesHeaderAndRows(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	ref, err := c.Append(ctx, testEntry("e1", core.NewDate(2024, 1, 31), 1))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "2024 Ledger!A2:K2" {
		t.Errorf("unexpected ref %q", ref)
	}
	ref, err = c.Append(ctx, testEntry("e2", core.NewDate(2024, 2, 29), 2))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "2024 Ledger!A3:K3" {
		t.Errorf("unexpected ref %q", ref)
	}

	rows := fake.sheets["2024 Ledger"]
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" {
		t.Errorf("expected header row, got %v", rows[0])
	}

	got, err := c.ListEntries(ctx, 2024)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[1].Date != "2024-02-29" || got[1].Amount != "365.00" || got[1].Occurrence != 2 || !got[1].Chomesh {
		t.Errorf("unexpected rows %+v", got)
	}
}

func TestClient_AppendSkipsKnownEntry(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	e := testEntry("e1", core.NewDate(2024, 1, 31), 1)

	first, err := c.Append(ctx, e)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// A fresh client must find the row through the sheet, not its own cache.
	c.invalidate(c.SheetFor(2024))
	second, err := c.Append(ctx, e)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if first != second {
		t.Errorf("expected same ref, got %q and %q", first, second)
	}
	if fake.updates != 1 {
		t.Errorf("expected one update, got %d", fake.updates)
	}
}

func TestClient_SheetPerYear(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if _, err := c.Append(ctx, testEntry("e1", core.NewDate(2024, 12, 31), 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := c.Append(ctx, testEntry("e2", core.NewDate(2025, 1, 31), 2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.sheets["2024 Ledger"]) != 2 || len(fake.sheets["2025 Ledger"]) != 2 {
		t.Errorf("unexpected sheets: %v", fake.sheets)
	}
}

func TestRowIndexCache(t *testing.T) {
	c, fake := newFakeClient(t)
	c.cacheValidDuration = 50 * time.Millisecond
	ctx := context.Background()
	sheet := c.SheetFor(2024)

	if _, err := c.loadIndex(ctx, sheet); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := c.loadIndex(ctx, sheet); err != nil {
		t.Fatalf("load: %v", err)
	}
	if fake.gets != 1 {
		t.Errorf("expected cached index, got %d reads", fake.gets)
	}

	time.Sleep(80 * time.Millisecond)
	if _, err := c.loadIndex(ctx, sheet); err != nil {
		t.Fatalf("load: %v", err)
	}
	if fake.gets != 2 {
		t.Errorf("expected reload after TTL, got %d reads", fake.gets)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"Maaser", 2024, "2024 Maaser"},
		{"", 2023, ""}, // Empty base returns empty
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"}, // Already has year prefix
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestIndexIDs(t *testing.T) {
	values := [][]interface{}{
		{"Entry ID"},
		{"a"},
		{},
		{" b "},
	}
	ids := indexIDs(values)
	if len(ids) != 2 || ids["a"] != 2 || ids["b"] != 4 {
		t.Errorf("unexpected index %v", ids)
	}
}
