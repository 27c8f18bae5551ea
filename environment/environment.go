package environment

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidParameter is returned for configuration values outside their domain.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidArm is returned when an arm index is out of range.
	ErrInvalidArm = errors.New("invalid arm index")
	// ErrExhausted is returned by Pull once every trial has been played.
	ErrExhausted = errors.New("all trials have been played")
)

// Environment is a stationary Bernoulli bandit with hidden per-arm win rates.
// Outcomes are precomputed into an N x d table unless lazy mode is enabled,
// in which case each pull draws a fresh Bernoulli sample.
type Environment struct {
	winRates []float64 // hidden success probability per arm
	trials   int       // total number of trials N
	lazy     bool      // draw outcomes on demand instead of precomputing

	// Random source shared by win rate generation, the table and lazy pulls
	src rand.Source

	table *mat.Dense // N x d outcome table, nil in lazy mode
	next  int        // index of the next trial to be played
}

// Option configures an Environment.
type Option func(*Environment)

// WithSource sets the random source used for outcome generation.
func WithSource(src rand.Source) Option {
	return func(e *Environment) {
		e.src = src
	}
}

// WithRandomSeed seeds a PCG source. Seed 0 picks a time based seed.
func WithRandomSeed(seed uint64) Option {
	return func(e *Environment) {
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		e.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

// WithLazyOutcomes skips the outcome table and draws rewards on each pull.
func WithLazyOutcomes() Option {
	return func(e *Environment) {
		e.lazy = true
	}
}

// New creates an environment over explicit win rates, each in (0, 1).
func New(winRates []float64, trials int, options ...Option) (*Environment, error) {
	if len(winRates) == 0 {
		return nil, fmt.Errorf("%w: number of arms must be positive, got 0", ErrInvalidParameter)
	}
	for i, p := range winRates {
		if !(p > 0 && p < 1) {
			return nil, fmt.Errorf("%w: win rate of arm %d must be in (0, 1), got %v", ErrInvalidParameter, i, p)
		}
	}
	if trials <= 0 {
		return nil, fmt.Errorf("%w: number of trials must be positive, got %d", ErrInvalidParameter, trials)
	}

	e := newEnvironment(options)
	e.winRates = append([]float64(nil), winRates...)
	e.trials = trials
	e.fill()
	return e, nil
}

// NewRandom creates an environment with nArms win rates drawn uniformly from
// (0, maxWinRatio]. Win rates and outcomes come from the same source.
func NewRandom(nArms int, maxWinRatio float64, trials int, options ...Option) (*Environment, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("%w: number of trials must be positive, got %d", ErrInvalidParameter, trials)
	}
	e := newEnvironment(options)
	winRates, err := GenerateWinRates(e.src, nArms, maxWinRatio)
	if err != nil {
		return nil, err
	}
	e.winRates = winRates
	e.trials = trials
	e.fill()
	return e, nil
}

// GenerateWinRates draws nArms win rates uniformly from (0, maxWinRatio] by
// rejection: a uniform draw on [0, 1) is kept only if it is nonzero and does
// not exceed maxWinRatio.
func GenerateWinRates(src rand.Source, nArms int, maxWinRatio float64) ([]float64, error) {
	if nArms <= 0 {
		return nil, fmt.Errorf("%w: number of arms must be positive, got %d", ErrInvalidParameter, nArms)
	}
	if !(maxWinRatio > 0 && maxWinRatio <= 1) {
		return nil, fmt.Errorf("%w: max win ratio must be in (0, 1], got %v", ErrInvalidParameter, maxWinRatio)
	}

	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	rates := make([]float64, nArms)
	for i := range rates {
		for rates[i] == 0 {
			if u := uniform.Rand(); u > 0 && u <= maxWinRatio {
				rates[i] = u
			}
		}
	}
	return rates, nil
}

func newEnvironment(options []Option) *Environment {
	e := &Environment{}
	for _, opt := range options {
		opt(e)
	}
	if e.src == nil {
		WithRandomSeed(0)(e)
	}
	return e
}

// fill precomputes the outcome table, trial by trial and arm by arm.
func (e *Environment) fill() {
	if e.lazy {
		return
	}
	d := len(e.winRates)
	e.table = mat.NewDense(e.trials, d, nil)
	arms := e.bernoullis()
	for t := 0; t < e.trials; t++ {
		for i := range arms {
			e.table.Set(t, i, arms[i].Rand())
		}
	}
}

func (e *Environment) bernoullis() []distuv.Bernoulli {
	arms := make([]distuv.Bernoulli, len(e.winRates))
	for i, p := range e.winRates {
		arms[i] = distuv.Bernoulli{P: p, Src: e.src}
	}
	return arms
}

// Pull plays arm at the current trial and returns its outcome (1 win, 0 loss).
// Each call consumes one trial; only the chosen arm's cell is ever read.
func (e *Environment) Pull(arm int) (int, error) {
	if arm < 0 || arm >= len(e.winRates) {
		return 0, fmt.Errorf("%w: %d (arms: %d)", ErrInvalidArm, arm, len(e.winRates))
	}
	if e.next >= e.trials {
		return 0, ErrExhausted
	}

	var outcome float64
	if e.lazy {
		outcome = distuv.Bernoulli{P: e.winRates[arm], Src: e.src}.Rand()
	} else {
		outcome = e.table.At(e.next, arm)
	}
	e.next++
	return int(outcome), nil
}

// NArms returns the number of arms.
func (e *Environment) NArms() int { return len(e.winRates) }

// Trials returns the total number of trials.
func (e *Environment) Trials() int { return e.trials }

// Played returns the number of trials consumed so far.
func (e *Environment) Played() int { return e.next }

// Lazy reports whether outcomes are drawn on demand.
func (e *Environment) Lazy() bool { return e.lazy }

// WinRates returns a copy of the hidden win rates, for reporting only.
func (e *Environment) WinRates() []float64 {
	return append([]float64(nil), e.winRates...)
}

// BestArm returns the arm with the highest true win rate (first on ties).
func (e *Environment) BestArm() int {
	best := 0
	for i, p := range e.winRates {
		if p > e.winRates[best] {
			best = i
		}
	}
	return best
}

// TableTotals counts wins and losses per arm over the whole outcome table, as
// if every arm had been played on every trial. ok is false in lazy mode.
func (e *Environment) TableTotals() (wins, losses []int, ok bool) {
	if e.table == nil {
		return nil, nil, false
	}
	d := len(e.winRates)
	wins = make([]int, d)
	losses = make([]int, d)
	for i := 0; i < d; i++ {
		col := mat.Col(nil, i, e.table)
		for _, v := range col {
			if v == 1 {
				wins[i]++
			} else {
				losses[i]++
			}
		}
	}
	return wins, losses, true
}
