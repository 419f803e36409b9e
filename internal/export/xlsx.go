// Package export renders ledger entries into spreadsheet files.
package export

import (
	"fmt"
	"io"
	"sort"

	"maaser/internal/core"
	"maaser/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	EntriesSheet = "Entries"
	TotalsSheet  = "Totals"
)

var columnWidths = []float64{12, 20, 30, 15, 12, 10, 25, 10, 38, 12, 38}

// Total is the sum of one transaction type in one currency.
type Total struct {
	Type     core.TransactionType
	Currency string
	Amount   decimal.Decimal
	Count    int
}

// Totals sums entries by type and currency, sorted by type then currency.
func Totals(entries []core.LedgerEntry) []Total {
	type key struct {
		t core.TransactionType
		c string
	}
	sums := map[key]*Total{}
	for _, e := range entries {
		k := key{e.Payload.Type, e.Payload.Currency}
		t, ok := sums[k]
		if !ok {
			t = &Total{Type: k.t, Currency: k.c, Amount: decimal.Zero}
			sums[k] = t
		}
		t.Amount = t.Amount.Add(e.Payload.Amount)
		t.Count++
	}
	out := make([]Total, 0, len(sums))
	for _, t := range sums {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// WriteXLSX writes entries and their totals as an xlsx workbook.
func WriteXLSX(w io.Writer, entries []core.LedgerEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(EntriesSheet)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", EntriesSheet, err)
	}
	f.SetActiveSheet(index)
	// Drop the default sheet once ours is active.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	header := make([]interface{}, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(EntriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := sheets.RowFor(e).Values()
		if err := f.SetSheetRow(EntriesSheet, cell, &values); err != nil {
			return fmt.Errorf("write entry %s: %w", e.ID, err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(EntriesSheet, col, col, width); err != nil {
			return err
		}
	}

	if err := writeTotals(f, Totals(entries)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTotals(f *excelize.File, totals []Total) error {
	if _, err := f.NewSheet(TotalsSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", TotalsSheet, err)
	}
	header := []interface{}{"Type", "Currency", "Entries", "Amount"}
	if err := f.SetSheetRow(TotalsSheet, "A1", &header); err != nil {
		return err
	}
	for i, t := range totals {
		row := []interface{}{string(t.Type), t.Currency, t.Count, core.FormatAmount(t.Amount)}
		if err := f.SetSheetRow(TotalsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}
