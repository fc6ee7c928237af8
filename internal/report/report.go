// Package report turns a ledger summary into text: the short share message
// and a markdown report for terminals.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"billsplit/internal/core"
	"billsplit/internal/split"
)

// ShareText is the message handed to a share sheet.
func ShareText(event string, s split.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 *BillSplit (%s)*\n", event)
	fmt.Fprintf(&b, "💰 Total: %s\n", core.FormatAmount(s.Total, s.Currency))
	fmt.Fprintf(&b, "👥 Split by %d\n", s.Persons)
	fmt.Fprintf(&b, "👉 Each: %s", core.FormatAmount(s.PerPerson, s.Currency))
	return b.String()
}

// Line is one expense row of a report, already converted for display.
type Line struct {
	Expense       core.Expense
	DisplayAmount float64
}

// Markdown writes the summary, category breakdown and optional line items.
func Markdown(w io.Writer, event string, s split.Summary, lines []Line) {
	fmt.Fprintf(w, "# Total (%s)\n\n", event)
	fmt.Fprintf(w, "**%s** across %d expenses\n\n", core.FormatAmount(s.Total, s.Currency), s.Count)
	fmt.Fprintf(w, "Per person (%d): **%s**\n\n", s.Persons, core.FormatAmount(s.PerPerson, s.Currency))

	if len(s.Categories) > 0 {
		fmt.Fprintf(w, "## By category\n\n")
		fmt.Fprintf(w, "| Category | Amount | Share |\n|---|---:|---:|\n")
		for _, c := range s.Categories {
			fmt.Fprintf(w, "| %s | %s | %.1f%% |\n", c.Category, core.FormatAmount(c.DisplayAmount, s.Currency), c.Share*100)
		}
		fmt.Fprintln(w)
	}

	if len(lines) > 0 {
		fmt.Fprintf(w, "## Expenses\n\n")
		fmt.Fprintf(w, "| # | Name | Category | Event | Date | Amount |\n|---:|---|---|---|---|---:|\n")
		for _, l := range lines {
			e := l.Expense
			fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s |\n",
				e.ID, escape(e.Name), escape(string(e.Category)), escape(e.EventName),
				e.CreatedAt.Format("02 Jan, 03:04 PM"), core.FormatAmount(l.DisplayAmount, s.Currency))
		}
		fmt.Fprintln(w)
	}
}

// Render pretty-prints markdown for a terminal. style is a glamour style
// name such as "dark", "light", "notty" or "auto".
func Render(md, style string) (string, error) {
	if style == "" {
		style = "auto"
	}
	out, err := glamour.Render(md, style)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
