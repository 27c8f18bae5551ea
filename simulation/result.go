package simulation

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	betats "github.com/n0madic/go-bernoulli-bandits/beta-ts"
)

// Result is the outcome of one simulation run.
type Result struct {
	RunID    uuid.UUID
	Seed     uint64
	WinRates []float64 // hidden win rates, revealed for reporting
	Trials   int
	Wins     []int
	Losses   []int
	Choices  []int // arm chosen at each trial

	// Full-information totals of the outcome table; nil for lazy outcomes.
	TableWins   []int
	TableLosses []int

	Agent    *betats.BetaTS
	Duration time.Duration
}

// Stats summarizes the final belief state of a run.
type Stats struct {
	Wins      []int
	Losses    []int
	Plays     []int
	BestArm   int // arm with the most plays, lowest index on ties
	BestPlays int
}

// Stats computes per-arm plays and the most played arm.
func (r *Result) Stats() Stats {
	return NewStats(r.Wins, r.Losses)
}

// NewStats derives plays and the best arm from win and loss counts.
func NewStats(wins, losses []int) Stats {
	plays := make([]int, len(wins))
	fplays := make([]float64, len(wins))
	for i := range wins {
		plays[i] = wins[i] + losses[i]
		fplays[i] = float64(plays[i])
	}

	s := Stats{
		Wins:   append([]int(nil), wins...),
		Losses: append([]int(nil), losses...),
		Plays:  plays,
	}
	if len(plays) > 0 {
		// floats.MaxIdx returns the first index of the maximum
		s.BestArm = floats.MaxIdx(fplays)
		s.BestPlays = plays[s.BestArm]
	}
	return s
}

// TrueBestArm returns the arm with the highest hidden win rate.
func (r *Result) TrueBestArm() int {
	if len(r.WinRates) == 0 {
		return 0
	}
	return floats.MaxIdx(r.WinRates)
}

// Regret returns the expected regret N*max(p) - sum(plays_i * p_i).
func (r *Result) Regret() float64 {
	if len(r.WinRates) == 0 {
		return 0
	}
	best := floats.Max(r.WinRates)
	regret := best * float64(r.Trials)
	for i, p := range r.WinRates {
		regret -= float64(r.Wins[i]+r.Losses[i]) * p
	}
	return regret
}

// TotalWins returns the number of rewarded trials.
func (r *Result) TotalWins() int {
	n := 0
	for _, w := range r.Wins {
		n += w
	}
	return n
}

// CumulativePlays returns, for every arm, the number of times it had been
// chosen after each trial. Only every step-th trial is kept, plus the last.
func (r *Result) CumulativePlays(step int) (trials []int, plays [][]int) {
	if step <= 0 {
		step = 1
	}
	counts := make([]int, len(r.WinRates))
	plays = make([][]int, len(r.WinRates))
	for t, arm := range r.Choices {
		counts[arm]++
		if (t+1)%step == 0 || t == len(r.Choices)-1 {
			trials = append(trials, t+1)
			for a := range counts {
				plays[a] = append(plays[a], counts[a])
			}
		}
	}
	return trials, plays
}

// Summary aggregates a batch of runs.
type Summary struct {
	Runs int
	// Identified counts runs whose most played arm is the true best arm.
	Identified int
	// BestShareMean and BestShareStdDev describe the fraction of trials
	// spent on the true best arm.
	BestShareMean   float64
	BestShareStdDev float64
	RegretMean      float64
	RegretStdDev    float64
}

// IdentificationRate returns Identified / Runs.
func (s Summary) IdentificationRate() float64 {
	if s.Runs == 0 {
		return math.NaN()
	}
	return float64(s.Identified) / float64(s.Runs)
}

// Summarize aggregates batch results.
func Summarize(results []*Result) Summary {
	sum := Summary{Runs: len(results)}
	if len(results) == 0 {
		return sum
	}

	shares := make([]float64, len(results))
	regrets := make([]float64, len(results))
	for i, r := range results {
		best := r.TrueBestArm()
		stats := r.Stats()
		if stats.BestArm == best {
			sum.Identified++
		}
		shares[i] = float64(stats.Plays[best]) / float64(r.Trials)
		regrets[i] = r.Regret()
	}

	sum.BestShareMean, sum.BestShareStdDev = stat.MeanStdDev(shares, nil)
	sum.RegretMean, sum.RegretStdDev = stat.MeanStdDev(regrets, nil)
	if len(results) == 1 {
		sum.BestShareStdDev = 0
		sum.RegretStdDev = 0
	}
	return sum
}
