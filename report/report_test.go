package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0madic/go-bernoulli-bandits/simulation"
)

func sampleResult() *simulation.Result {
	return &simulation.Result{
		Seed:        42,
		WinRates:    []float64{0.15, 0.04, 0.134},
		Trials:      100,
		Wins:        []int{12, 0, 3},
		Losses:      []int{60, 5, 20},
		Choices:     []int{0, 2, 0, 1, 0},
		TableWins:   []int{15, 4, 13},
		TableLosses: []int{85, 96, 87},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Options{NoColor: true}))
	out := buf.String()

	assert.Contains(t, out, "Machine 1 Win Ratio: 0.15")
	assert.Contains(t, out, "Machine 2 Win Ratio: 0.04")
	assert.Contains(t, out, "Machine 3 Win Ratio: 0.13")
	assert.Contains(t, out, "Wins: 12    Losses: 60")
	assert.Contains(t, out, "Wins: 0    Losses: 5")
	assert.Contains(t, out, "The best machine to play was Machine 1")
	assert.Contains(t, out, "72 total choice distributions of 100")
	assert.NotContains(t, out, "Table wins")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestWriteOracle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Options{NoColor: true, Oracle: true}))
	assert.Contains(t, buf.String(), "Table wins: 15    Table losses: 85")
}

func TestWriteColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Options{}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestWriteFlagsMissedBestArm(t *testing.T) {
	res := sampleResult()
	res.WinRates = []float64{0.15, 0.04, 0.5}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, Options{NoColor: true}))
	assert.Contains(t, buf.String(), "Machine 3 has the highest true win ratio.")
}

func TestWriteBatch(t *testing.T) {
	sum := simulation.Summary{
		Runs:            20,
		Identified:      19,
		BestShareMean:   0.91,
		BestShareStdDev: 0.02,
		RegretMean:      40.5,
		RegretStdDev:    3.25,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, sum, Options{NoColor: true}))
	out := buf.String()
	assert.Contains(t, out, "Runs: 20")
	assert.Contains(t, out, "19/20 (95.0%)")
	assert.Contains(t, out, "0.910 ± 0.020")
	assert.Contains(t, out, "40.50 ± 3.25")
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, sampleResult()))
	html := buf.String()

	assert.True(t, strings.Contains(html, "<html"), "expected an HTML document")
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Machine 1")
	assert.Contains(t, html, "Cumulative plays per machine")
}
