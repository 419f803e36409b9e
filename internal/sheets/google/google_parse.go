package google

import (
	"fmt"
	"strconv"
	"strings"

	ports "maaser/internal/sheets"
)

// parseRows converts a values matrix (as returned by Sheets API) into ledger
// rows. The first row must be the header; columns are located by name so a
// reordered sheet still parses.
func parseRows(values [][]interface{}) ([]ports.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	col := make(map[string]int, len(ports.Header))
	var missing []string
	for _, name := range ports.Header {
		i := indexOf(headers, name)
		if i == -1 {
			missing = append(missing, name)
		}
		col[name] = i
	}
	if indexOf(missing, "Entry ID") != -1 || indexOf(missing, "Date") != -1 || indexOf(missing, "Amount") != -1 {
		return nil, fmt.Errorf("unexpected ledger header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]ports.Row, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		get := func(name string) string { return safeGet(row, col[name]) }
		id := get("Entry ID")
		if id == "" {
			continue
		}
		occurrence, _ := strconv.Atoi(get("Occurrence"))
		chomesh, _ := strconv.ParseBool(strings.ToLower(get("Chomesh")))
		out = append(out, ports.Row{
			Date:        get("Date"),
			Type:        get("Type"),
			Description: get("Description"),
			Category:    get("Category"),
			Amount:      get("Amount"),
			Currency:    get("Currency"),
			Recipient:   get("Recipient"),
			Chomesh:     chomesh,
			EntryID:     id,
			Occurrence:  occurrence,
			Obligation:  get("Obligation ID"),
		})
	}
	return out, nil
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
