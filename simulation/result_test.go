package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStats(t *testing.T) {
	tests := []struct {
		name      string
		wins      []int
		losses    []int
		wantPlays []int
		wantBest  int
	}{
		{name: "clear best", wins: []int{3, 40, 1}, losses: []int{10, 20, 5}, wantPlays: []int{13, 60, 6}, wantBest: 1},
		{name: "tie keeps first", wins: []int{1, 2, 5}, losses: []int{4, 3, 0}, wantPlays: []int{5, 5, 5}, wantBest: 0},
		{name: "later tie", wins: []int{0, 1, 4}, losses: []int{1, 6, 3}, wantPlays: []int{1, 7, 7}, wantBest: 1},
		{name: "nothing played", wins: []int{0, 0}, losses: []int{0, 0}, wantPlays: []int{0, 0}, wantBest: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStats(tt.wins, tt.losses)
			assert.Equal(t, tt.wantPlays, s.Plays)
			assert.Equal(t, tt.wantBest, s.BestArm)
			assert.Equal(t, tt.wantPlays[tt.wantBest], s.BestPlays)
		})
	}
}

func TestRegret(t *testing.T) {
	r := &Result{
		WinRates: []float64{0.2, 0.5},
		Trials:   100,
		Wins:     []int{2, 40},
		Losses:   []int{8, 50},
	}
	// 100*0.5 - (10*0.2 + 90*0.5) = 50 - 47
	assert.InDelta(t, 3.0, r.Regret(), 1e-9)
	assert.Equal(t, 1, r.TrueBestArm())
	assert.Equal(t, 42, r.TotalWins())
}

func TestCumulativePlays(t *testing.T) {
	r := &Result{
		WinRates: []float64{0.1, 0.2},
		Choices:  []int{0, 1, 1, 0, 1},
	}

	trials, plays := r.CumulativePlays(2)
	assert.Equal(t, []int{2, 4, 5}, trials)
	assert.Equal(t, [][]int{{1, 2, 2}, {1, 2, 3}}, plays)

	trials, plays = r.CumulativePlays(0)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, trials)
	assert.Equal(t, []int{1, 1, 1, 2, 2}, plays[0])
}

func TestSummarize(t *testing.T) {
	results := []*Result{
		{WinRates: []float64{0.1, 0.6}, Trials: 10, Wins: []int{0, 6}, Losses: []int{2, 2}},
		{WinRates: []float64{0.1, 0.6}, Trials: 10, Wins: []int{1, 1}, Losses: []int{5, 3}},
	}

	s := Summarize(results)
	assert.Equal(t, 2, s.Runs)
	assert.Equal(t, 1, s.Identified)
	assert.InDelta(t, 0.5, s.IdentificationRate(), 1e-12)
	assert.InDelta(t, 0.6, s.BestShareMean, 1e-12)
	assert.Greater(t, s.BestShareStdDev, 0.0)

	single := Summarize(results[:1])
	assert.Equal(t, 0.0, single.BestShareStdDev)
	assert.Equal(t, 0.0, single.RegretStdDev)

	empty := Summarize(nil)
	assert.True(t, math.IsNaN(empty.IdentificationRate()))
}
