// Package report renders finished marketplace runs for humans.
package report

import (
	"fmt"
	"io"
	"sort"

	svg "github.com/ajstarks/svgo"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/trace"
)

const (
	border       = 5
	labelWidth   = 90
	plotWidth    = 900
	rowHeight    = 14
	rowSpacing   = 4
	legendRowH   = 16
	headerHeight = 30
)

var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// WriteTimeline draws one row per consumer with one bar per purchase,
// coloured by instance. Purchases come from pt, which must have been
// recorded at TraceLevelPurchases.
func WriteTimeline(w io.Writer, title string, consumers []sim.ConsumerRecord, pt *trace.PurchaseTrace, endTime int64) error {
	if pt == nil {
		return fmt.Errorf("timeline requires a purchase trace")
	}
	horizon := endTime
	for _, p := range pt.Purchases {
		if p.Clock+p.Time > horizon {
			horizon = p.Clock + p.Time
		}
	}
	if horizon <= 0 {
		horizon = 1
	}
	scale := float64(plotWidth) / float64(horizon)

	colors := instanceColors(pt)
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	rowsHeight := len(consumers) * (rowHeight + rowSpacing)
	width := border*2 + labelWidth + plotWidth
	height := headerHeight + rowsHeight + border*2 + len(names)*legendRowH

	s := svg.New(w)
	s.Start(width, height)
	s.Text(border, 20, fmt.Sprintf("%s - %d consumers - %d ticks", title, len(consumers), endTime),
		`text-anchor:start;font-size:16px;font-family:Helvetica Neue`)

	for i, c := range consumers {
		y := headerHeight + i*(rowHeight+rowSpacing)
		s.Text(border, y+rowHeight-3, c.Name, `text-anchor:start;font-size:11px;font-family:Helvetica Neue`)
		s.Rect(border+labelWidth, y, plotWidth, rowHeight, "fill:#f7f7f7")
		for _, p := range pt.ForConsumer(c.Name) {
			x := border + labelWidth + int(float64(p.Clock)*scale)
			barWidth := int(float64(p.Time) * scale)
			if barWidth < 1 {
				barWidth = 1
			}
			s.Rect(x, y+1, barWidth, rowHeight-2, "fill:"+colors[p.ChosenInstance])
		}
		if !c.Finished {
			s.Text(border+labelWidth+plotWidth-2, y+rowHeight-3, "unfinished",
				`text-anchor:end;font-size:10px;fill:#e15759`)
		}
	}

	legendY := headerHeight + rowsHeight + border
	for i, name := range names {
		y := legendY + i*legendRowH
		s.Rect(border+labelWidth, y, 10, 10, "fill:"+colors[name])
		s.Text(border+labelWidth+14, y+9, name, `text-anchor:start;font-size:11px`)
	}

	s.End()
	return nil
}

// instanceColors assigns palette colours to instances in order of first purchase.
func instanceColors(pt *trace.PurchaseTrace) map[string]string {
	colors := make(map[string]string)
	for _, p := range pt.Purchases {
		if _, ok := colors[p.ChosenInstance]; !ok {
			colors[p.ChosenInstance] = palette[len(colors)%len(palette)]
		}
	}
	return colors
}
