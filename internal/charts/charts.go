// Package charts renders the category breakdown as a pie chart image.
package charts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"billsplit/internal/core"
	"billsplit/internal/split"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

var palette = map[core.Category]drawing.Color{
	core.Food:   drawing.ColorFromHex("E57373"),
	core.Travel: drawing.ColorFromHex("81C784"),
	core.Home:   drawing.ColorFromHex("64B5F6"),
	core.Fun:    drawing.ColorFromHex("FFD54F"),
	core.Other:  drawing.ColorFromHex("BA68C8"),
}

// Color returns the slice color for a category. Categories outside the
// closed set share the Other color.
func Color(c core.Category) drawing.Color {
	return palette[c.Bucket()]
}

type Options struct {
	Title  string
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 600
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	return o
}

// CategoryPie draws one slice per category, sized by its share of the total.
func CategoryPie(s split.Summary, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	values := make([]chart.Value, 0, len(s.Categories))
	for _, c := range s.Categories {
		if c.Amount <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.0f%%", c.Category, c.Share*100),
			Value: c.Amount,
			Style: chart.Style{
				FillColor:   Color(c.Category),
				StrokeColor: chart.ColorWhite,
				FontSize:    12,
				FontColor:   chart.ColorBlack,
			},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   40,
				Right:  40,
				Bottom: 40,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}
