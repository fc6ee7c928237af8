package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"billsplit/internal/core"
)

func header() []interface{} {
	return []interface{}{"id", "createdAt", "event", "name", "category", "amount"}
}

func expenseToRow(e core.Expense) []interface{} {
	return []interface{}{
		e.ID,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.EventName,
		e.Name,
		string(e.Category),
		e.Amount,
	}
}

// indexOfID scans the first column for id. Non-numeric cells such as the
// header are skipped.
func indexOfID(values [][]interface{}, id int64) int {
	for i, row := range values {
		if got, ok := cellID(row); ok && got == id {
			return i
		}
	}
	return -1
}

func parseIDs(values [][]interface{}) []int64 {
	var ids []int64
	for _, row := range values {
		if id, ok := cellID(row); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	if f, ok := row[0].(float64); ok {
		return int64(f), f == float64(int64(f))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
	return id, err == nil
}
