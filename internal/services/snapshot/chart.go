package snapshot

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/mstolarski/folio/internal/models"
)

// renderValueChart renders a PNG line chart from snapshot rows.
// Two series: Portfolio Value (blue solid) and Net Contributions, the running
// sum of external cashflows (gray dashed). Returns raw PNG bytes.
func renderValueChart(rows []models.SnapshotRow, currency models.Currency) ([]byte, error) {
	xValues := make([]time.Time, 0, len(rows))
	valueY := make([]float64, 0, len(rows))
	contribY := make([]float64, 0, len(rows))

	contributions := 0.0
	for _, row := range rows {
		cell, ok := row.Cells[currency]
		if !ok || cell.Value == nil {
			continue
		}
		if cell.ExternalCashflow != nil {
			contributions += cell.ExternalCashflow.InexactFloat64()
		}
		xValues = append(xValues, row.BucketDate.Time())
		valueY = append(valueY, cell.Value.InexactFloat64())
		contribY = append(contribY, contributions)
	}

	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(xValues))
	}

	valueSeries := chart.TimeSeries{
		Name: fmt.Sprintf("Portfolio Value (%s)", currency),
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	contribSeries := chart.TimeSeries{
		Name: "Net Contributions",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: contribY,
	}

	graph := chart.Chart{
		Title:  "Portfolio Value",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f %s", f, currency)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			contribSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
