package betats

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"
)

var (
	// ErrDistributionSampling signals a Beta draw with a shape parameter below 1.
	// Counters never go negative, so this is an internal invariant violation.
	ErrDistributionSampling = errors.New("beta sampling with non-positive counts")
	// ErrInvalidArm is returned for an arm index outside [0, nArms).
	ErrInvalidArm = errors.New("invalid arm index")
	// ErrInvalidReward is returned for rewards other than 0 or 1.
	ErrInvalidReward = errors.New("reward must be 0 or 1")
)

// BetaTS implements Thompson Sampling for Bernoulli bandits with a uniform
// Beta(1, 1) prior. Arm i's posterior is Beta(wins[i]+1, losses[i]+1).
//
// BetaTS is not safe for concurrent use: trial t+1 depends on the update made
// at trial t, so a run is driven by a single goroutine.
type BetaTS struct {
	nArms   int
	wins    []int       // successes observed per arm
	losses  []int       // failures observed per arm
	sampler Sampler     // Beta sampler, gonum backed unless overridden
	src     rand.Source // source for the default sampler
	samples []float64   // last sampled belief per arm
}

// Option defines a functional option for configuring BetaTS
type Option func(*BetaTS)

// WithSampler overrides the Beta sampler.
func WithSampler(s Sampler) Option {
	return func(b *BetaTS) {
		b.sampler = s
	}
}

// WithSource sets the random source for the default gonum sampler.
func WithSource(src rand.Source) Option {
	return func(b *BetaTS) {
		b.src = src
	}
}

// WithRandomSeed sets the random seed for reproducibility
func WithRandomSeed(seed uint64) Option {
	return func(b *BetaTS) {
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		b.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

// NewBetaTS creates a new Beta-Bernoulli Thompson Sampling agent.
func NewBetaTS(nArms int, options ...Option) (*BetaTS, error) {
	if nArms <= 0 {
		return nil, fmt.Errorf("number of arms must be positive, got %d", nArms)
	}

	b := &BetaTS{
		nArms:   nArms,
		wins:    make([]int, nArms),
		losses:  make([]int, nArms),
		samples: make([]float64, nArms),
	}

	for _, opt := range options {
		opt(b)
	}

	if b.sampler == nil {
		if b.src == nil {
			WithRandomSeed(0)(b)
		}
		b.sampler = NewGonumSampler(b.src)
	}

	return b, nil
}

// SelectAction samples a belief for every arm and returns the arm with the
// largest sample. The running maximum starts at 0 and is only replaced by a
// strictly greater sample, so ties go to the lowest index and an all-zero
// draw selects arm 0.
func (b *BetaTS) SelectAction() (int, error) {
	chosen := 0
	maxSample := 0.0
	for a := 0; a < b.nArms; a++ {
		alpha := float64(b.wins[a] + 1)
		beta := float64(b.losses[a] + 1)
		if alpha < 1 || beta < 1 {
			return 0, fmt.Errorf("%w: arm %d has Beta(%v, %v)", ErrDistributionSampling, a, alpha, beta)
		}

		sample := b.sampler.SampleBeta(alpha, beta)
		b.samples[a] = sample
		if sample > maxSample {
			maxSample = sample
			chosen = a
		}
	}
	return chosen, nil
}

// Update records the observed reward (1 win, 0 loss) for the chosen arm.
func (b *BetaTS) Update(arm int, reward int) error {
	if arm < 0 || arm >= b.nArms {
		return fmt.Errorf("%w: %d (arms: %d)", ErrInvalidArm, arm, b.nArms)
	}
	switch reward {
	case 1:
		b.wins[arm]++
	case 0:
		b.losses[arm]++
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidReward, reward)
	}
	return nil
}

// NArms returns the number of arms.
func (b *BetaTS) NArms() int { return b.nArms }

// Wins returns a copy of the per-arm win counts.
func (b *BetaTS) Wins() []int { return append([]int(nil), b.wins...) }

// Losses returns a copy of the per-arm loss counts.
func (b *BetaTS) Losses() []int { return append([]int(nil), b.losses...) }

// Plays returns wins+losses per arm, i.e. how often each arm was chosen.
func (b *BetaTS) Plays() []int {
	plays := make([]int, b.nArms)
	for a := range plays {
		plays[a] = b.wins[a] + b.losses[a]
	}
	return plays
}

// Trials returns the total number of updates applied.
func (b *BetaTS) Trials() int {
	n := 0
	for a := 0; a < b.nArms; a++ {
		n += b.wins[a] + b.losses[a]
	}
	return n
}

// LastSamples returns the beliefs drawn by the most recent SelectAction.
func (b *BetaTS) LastSamples() []float64 { return append([]float64(nil), b.samples...) }

// PosteriorMean returns the mean (wins+1)/(plays+2) of an arm's posterior.
func (b *BetaTS) PosteriorMean(arm int) (float64, error) {
	if arm < 0 || arm >= b.nArms {
		return 0, fmt.Errorf("%w: %d (arms: %d)", ErrInvalidArm, arm, b.nArms)
	}
	return float64(b.wins[arm]+1) / float64(b.wins[arm]+b.losses[arm]+2), nil
}

// ResetArm resets a specific arm to its Beta(1, 1) prior
func (b *BetaTS) ResetArm(arm int) error {
	if arm < 0 || arm >= b.nArms {
		return fmt.Errorf("%w: %d (arms: %d)", ErrInvalidArm, arm, b.nArms)
	}
	b.wins[arm] = 0
	b.losses[arm] = 0
	b.samples[arm] = 0
	return nil
}

// Reset resets every arm to the prior.
func (b *BetaTS) Reset() {
	for a := 0; a < b.nArms; a++ {
		b.wins[a] = 0
		b.losses[a] = 0
		b.samples[a] = 0
	}
}

// GetStats returns current model statistics
func (b *BetaTS) GetStats() map[string]any {
	means := make([]float64, b.nArms)
	for a := range means {
		means[a], _ = b.PosteriorMean(a)
	}
	return map[string]any{
		"n_arms":          b.nArms,
		"trials":          b.Trials(),
		"wins":            b.Wins(),
		"losses":          b.Losses(),
		"posterior_means": means,
	}
}

// BetaTSState represents the serializable state of BetaTS
type BetaTSState struct {
	Version int   `gob:"version"`
	NArms   int   `gob:"n_arms"`
	Wins    []int `gob:"wins"`
	Losses  []int `gob:"losses"`
}

// Save serializes the belief state to gob format. The sampler is not saved.
func (b *BetaTS) Save(w io.Writer) error {
	state := BetaTSState{
		Version: 1,
		NArms:   b.nArms,
		Wins:    b.Wins(),
		Losses:  b.Losses(),
	}

	encoder := gob.NewEncoder(w)
	return encoder.Encode(state)
}

// Load deserializes a belief state from gob format. Options supply the
// sampler or random source for the restored agent.
func Load(r io.Reader, options ...Option) (*BetaTS, error) {
	decoder := gob.NewDecoder(r)

	var state BetaTSState
	if err := decoder.Decode(&state); err != nil {
		return nil, err
	}

	if state.Version != 1 {
		return nil, errors.New("unsupported gob version")
	}

	b, err := NewBetaTS(state.NArms, options...)
	if err != nil {
		return nil, err
	}

	if len(state.Wins) != state.NArms || len(state.Losses) != state.NArms {
		return nil, errors.New("invalid counter data length")
	}
	for a := 0; a < state.NArms; a++ {
		if state.Wins[a] < 0 || state.Losses[a] < 0 {
			return nil, fmt.Errorf("negative counts for arm %d", a)
		}
	}
	copy(b.wins, state.Wins)
	copy(b.losses, state.Losses)

	return b, nil
}
