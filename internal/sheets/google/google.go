package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"maaser/internal/core"
	ports "maaser/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// entryIDColumn holds entry IDs; it is the column used to find existing rows.
const entryIDColumn = "I"

// lastColumn is the last column written for a ledger row.
const lastColumn = "K"

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name without year (e.g. "Ledger"); the entry's year is prefixed.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// CacheTTL bounds how long a sheet's row index is trusted (default 5m).
	CacheTTL time.Duration
}

type sheetIndex struct {
	rows      int
	ids       map[string]int
	expiresAt time.Time
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu                 sync.Mutex
	cacheValidDuration time.Duration
	index              map[string]*sheetIndex
}

// Ensure interface conformance
var (
	_ ports.EntryWriter = (*Client)(nil)
	_ ports.EntryLister = (*Client)(nil)
)

// NewFromConfig creates a Sheets client authenticated with a service account.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Ledger"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(cfg.SpreadsheetID),
		sheetBase:          base,
		cacheValidDuration: ttl,
		index:              map[string]*sheetIndex{},
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is given.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// SheetFor returns the sheet an entry dated in year is written to.
func (c *Client) SheetFor(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// Append writes the entry as the next row of its year's sheet. An entry whose ID
// is already present is not written again and its existing row is returned.
func (c *Client) Append(ctx context.Context, e core.LedgerEntry) (string, error) {
	if strings.TrimSpace(e.ID) == "" {
		return "", errors.New("validation failed: entry id is required")
	}
	if err := e.Payload.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := c.SheetFor(e.Date.Year())
	idx, err := c.loadIndex(ctx, sheet)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if row, ok := idx.ids[e.ID]; ok {
		c.mu.Unlock()
		return rowRef(sheet, row), nil
	}
	writeHeader := idx.rows == 0
	nextRow := idx.rows + 1
	if writeHeader {
		nextRow = 2
	}
	c.mu.Unlock()

	values := [][]any{ports.RowFor(e).Values()}
	start := nextRow
	if writeHeader {
		header := make([]any, len(ports.Header))
		for i, h := range ports.Header {
			header[i] = h
		}
		values = append([][]any{header}, values...)
		start = 1
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, start, lastColumn, nextRow)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidate(sheet)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	c.mu.Lock()
	idx.rows = nextRow
	idx.ids[e.ID] = nextRow
	c.mu.Unlock()

	return rowRef(sheet, nextRow), nil
}

// ListEntries reads every mirrored row of the year's sheet.
func (c *Client) ListEntries(ctx context.Context, year int) ([]ports.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", c.SheetFor(year), lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values)
}

// loadIndex returns the cached row index of sheet, reading the entry ID column when stale.
func (c *Client) loadIndex(ctx context.Context, sheet string) (*sheetIndex, error) {
	c.mu.Lock()
	idx, ok := c.index[sheet]
	if ok && time.Now().Before(idx.expiresAt) {
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!%s:%s", sheet, entryIDColumn, entryIDColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read row index of %s: %w", sheet, err)
	}

	idx = &sheetIndex{
		rows:      len(resp.Values),
		ids:       indexIDs(resp.Values),
		expiresAt: time.Now().Add(c.cacheValidDuration),
	}
	c.mu.Lock()
	c.index[sheet] = idx
	c.mu.Unlock()
	return idx, nil
}

func (c *Client) invalidate(sheet string) {
	c.mu.Lock()
	delete(c.index, sheet)
	c.mu.Unlock()
}

// indexIDs maps entry IDs found in a single-column range to their 1-based row.
func indexIDs(values [][]interface{}) map[string]int {
	ids := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || i == 0 && strings.EqualFold(id, "Entry ID") {
			continue
		}
		ids[id] = i + 1
	}
	return ids
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
