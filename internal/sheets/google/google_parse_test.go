package google

import (
	"strings"
	"testing"
)

func TestParseRows(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Type", "Description", "Category", "Amount", "Currency", "Recipient", "Chomesh", "Entry ID", "Occurrence", "Obligation ID"},
		{"2024-01-31", "donation", "Monthly maaser", "Charity", "365.00", "ILS", "Local shul", "TRUE", "e1", 1.0, "ob-1"},
		{"2024-02-29", "donation", "Monthly maaser", "Charity", "365.00", "ILS", "", "FALSE", "e2", "2", "ob-1"},
		{"", "", "", "", "", "", "", "", ""},
	}
	rows, err := parseRows(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].EntryID != "e1" || !rows[0].Chomesh || rows[0].Recipient != "Local shul" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].Occurrence != 2 || rows[1].Chomesh {
		t.Errorf("unexpected second row %+v", rows[1])
	}
}

func TestParseRows_ReorderedColumns(t *testing.T) {
	values := [][]interface{}{
		{"Entry ID", "Amount", "Date"},
		{"e1", "10.00", "2024-03-01"},
	}
	rows, err := parseRows(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(rows) != 1 || rows[0].Amount != "10.00" || rows[0].Date != "2024-03-01" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestParseRows_UnexpectedHeader(t *testing.T) {
	_, err := parseRows([][]interface{}{{"Month", "Day", "Description"}})
	if err == nil || !strings.Contains(err.Error(), "unexpected ledger header") {
		t.Errorf("expected header error, got %v", err)
	}
}

func TestParseRows_Empty(t *testing.T) {
	rows, err := parseRows(nil)
	if err != nil || rows != nil {
		t.Errorf("expected no rows, got %v %v", rows, err)
	}
}
