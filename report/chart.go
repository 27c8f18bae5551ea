package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/n0madic/go-bernoulli-bandits/simulation"
)

// maxChartPoints caps the x axis so large runs still render quickly.
const maxChartPoints = 500

// RenderChart writes an HTML line chart of cumulative plays per machine.
func RenderChart(w io.Writer, res *simulation.Result) error {
	step := len(res.Choices) / maxChartPoints
	if step < 1 {
		step = 1
	}
	trials, plays := res.CumulativePlays(step)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeInfographic,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative plays per machine",
			Subtitle: fmt.Sprintf("Thompson Sampling, %d trials, seed %d", res.Trials, res.Seed),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	xAxis := make([]string, len(trials))
	for i, t := range trials {
		xAxis[i] = strconv.Itoa(t)
	}
	line.SetXAxis(xAxis)

	for arm, counts := range plays {
		items := make([]opts.LineData, len(counts))
		for i, c := range counts {
			items[i] = opts.LineData{Value: c}
		}
		name := fmt.Sprintf("Machine %d (p=%.2f)", arm+1, res.WinRates[arm])
		line.AddSeries(name, items)
	}

	return line.Render(w)
}
