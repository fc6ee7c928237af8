package ledger

import "billsplit/internal/core"

// AllEvents is the filter value that selects every record.
const AllEvents = "All Events"

// Filter returns the records whose event tag equals selected exactly
// (case-sensitive, untrimmed). AllEvents returns records unchanged.
func Filter(records []core.Expense, selected string) []core.Expense {
	if selected == AllEvents {
		return records
	}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if e.EventName == selected {
			out = append(out, e)
		}
	}
	return out
}

// Events lists the distinct event tags of records in first-seen order.
func Events(records []core.Expense) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, e := range records {
		if _, ok := seen[e.EventName]; ok {
			continue
		}
		seen[e.EventName] = struct{}{}
		out = append(out, e.EventName)
	}
	return out
}
