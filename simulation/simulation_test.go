package simulation

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	betats "github.com/n0madic/go-bernoulli-bandits/beta-ts"
	"github.com/n0madic/go-bernoulli-bandits/config"
	"github.com/n0madic/go-bernoulli-bandits/environment"
)

func seeded(cfg config.Config, seed uint64) config.Config {
	cfg.Seed = &seed
	return cfg
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}

func TestRunPlaysEveryTrial(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "defaults", cfg: config.Default()},
		{name: "explicit rates", cfg: config.Config{WinRates: []float64{0.15, 0.04, 0.13, 0.11, 0.05}, NumTrials: 2000, Runs: 1}},
		{name: "many arms", cfg: config.Config{NumArms: 40, MaxWinRatio: 1, NumTrials: 3000, Runs: 1}},
		{name: "single arm", cfg: config.Config{NumArms: 1, MaxWinRatio: 0.5, NumTrials: 100, Runs: 1}},
		{name: "lazy outcomes", cfg: config.Config{NumArms: 3, MaxWinRatio: 0.6, NumTrials: 1500, Runs: 1, LazyOutcomes: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := New(seeded(tt.cfg, 42))
			require.NoError(t, err)

			res, err := sim.Run()
			require.NoError(t, err)

			stats := res.Stats()
			assert.Equal(t, tt.cfg.NumTrials, sum(stats.Plays))
			assert.Len(t, res.Choices, tt.cfg.NumTrials)
			for i := range stats.Plays {
				assert.GreaterOrEqual(t, stats.Wins[i], 0)
				assert.GreaterOrEqual(t, stats.Losses[i], 0)
			}

			counts := make([]int, len(stats.Plays))
			for _, arm := range res.Choices {
				counts[arm]++
			}
			assert.Equal(t, stats.Plays, counts)
			assert.Equal(t, res.Wins, res.Agent.Wins())
		})
	}
}

func TestRunGeneratedRatesWithinBound(t *testing.T) {
	cfg := config.Config{NumArms: 6, MaxWinRatio: 0.2, NumTrials: 10, Runs: 1}
	for seed := uint64(0); seed < 50; seed++ {
		sim, err := New(seeded(cfg, seed))
		require.NoError(t, err)
		res, err := sim.Run()
		require.NoError(t, err)
		for _, p := range res.WinRates {
			require.True(t, p > 0 && p <= 0.2, "seed %d generated %v", seed, p)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	cfg := seeded(config.Config{NumArms: 4, MaxWinRatio: 0.5, NumTrials: 3000, Runs: 1}, 2024)

	a, err := New(cfg)
	require.NoError(t, err)
	b, err := New(cfg)
	require.NoError(t, err)

	ra, err := a.Run()
	require.NoError(t, err)
	rb, err := b.Run()
	require.NoError(t, err)

	assert.Equal(t, ra.WinRates, rb.WinRates)
	assert.Equal(t, ra.Wins, rb.Wins)
	assert.Equal(t, ra.Losses, rb.Losses)
	assert.Equal(t, ra.Choices, rb.Choices)
	assert.Equal(t, ra.Stats().BestArm, rb.Stats().BestArm)
}

func TestRunSingleTrial(t *testing.T) {
	cfg := seeded(config.Config{NumArms: 5, MaxWinRatio: 0.2, NumTrials: 1, Runs: 1}, 3)
	sim, err := New(cfg)
	require.NoError(t, err)

	res, err := sim.Run()
	require.NoError(t, err)

	played := 0
	for _, p := range res.Stats().Plays {
		switch p {
		case 0:
		case 1:
			played++
		default:
			t.Fatalf("arm played %d times in a single trial", p)
		}
	}
	assert.Equal(t, 1, played)
}

func TestFirstTrialTieSelectsArmZero(t *testing.T) {
	cfg := seeded(config.Config{NumArms: 4, MaxWinRatio: 0.5, NumTrials: 1, Runs: 1}, 1)
	sim, err := New(cfg, WithSamplerFactory(func(rand.Source) betats.Sampler {
		return betats.SamplerFunc(func(alpha, beta float64) float64 { return 0.42 })
	}))
	require.NoError(t, err)

	res, err := sim.Run()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Choices)
	assert.Equal(t, 1, res.Stats().Plays[0])
}

func TestEndToEndClearWinner(t *testing.T) {
	cfg := seeded(config.Config{WinRates: []float64{0.9, 0.1}, NumTrials: 1000, Runs: 1}, 7)
	sim, err := New(cfg)
	require.NoError(t, err)

	res, err := sim.Run()
	require.NoError(t, err)

	stats := res.Stats()
	assert.Equal(t, 0, stats.BestArm)
	assert.Greater(t, stats.BestPlays, 800)
	assert.Equal(t, 0, res.TrueBestArm())
}

func TestStatisticalConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence test in short mode")
	}

	cfg := seeded(config.Config{
		WinRates:  []float64{0.05, 0.50, 0.10},
		NumTrials: 5000,
		Runs:      100,
	}, 1000)

	sim, err := New(cfg)
	require.NoError(t, err)

	results, err := sim.RunBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 100)

	summary := Summarize(results)
	assert.GreaterOrEqual(t, summary.IdentificationRate(), 0.95)
	assert.Greater(t, summary.BestShareMean, 0.8)
}

func TestInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "zero arms", cfg: config.Config{NumArms: 0, MaxWinRatio: 0.2, NumTrials: 100, Runs: 1}},
		{name: "zero trials", cfg: config.Config{NumArms: 3, MaxWinRatio: 0.2, NumTrials: 0, Runs: 1}},
		{name: "zero max ratio", cfg: config.Config{NumArms: 3, MaxWinRatio: 0, NumTrials: 100, Runs: 1}},
		{name: "rate out of range", cfg: config.Config{WinRates: []float64{0.5, 1.5}, NumTrials: 100, Runs: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, sim)
		})
	}
}

func TestRunBatchIndependentOfWorkers(t *testing.T) {
	base := seeded(config.Config{NumArms: 3, MaxWinRatio: 0.4, NumTrials: 500, Runs: 8}, 55)

	run := func(workers int) []*Result {
		cfg := base
		cfg.Workers = workers
		sim, err := New(cfg)
		require.NoError(t, err)
		results, err := sim.RunBatch(context.Background())
		require.NoError(t, err)
		return results
	}

	serial := run(1)
	parallel := run(4)
	require.Len(t, serial, 8)
	require.Len(t, parallel, 8)
	for i := range serial {
		assert.Equal(t, uint64(55)+uint64(i), serial[i].Seed)
		assert.Equal(t, serial[i].Wins, parallel[i].Wins, "run %d", i)
		assert.Equal(t, serial[i].Losses, parallel[i].Losses, "run %d", i)
	}
}

func TestRunBatchMatchesSingleRun(t *testing.T) {
	cfg := seeded(config.Config{NumArms: 3, MaxWinRatio: 0.4, NumTrials: 400, Runs: 3}, 90)
	sim, err := New(cfg)
	require.NoError(t, err)

	single, err := sim.Run()
	require.NoError(t, err)
	batch, err := sim.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, single.Wins, batch[0].Wins)
	assert.Equal(t, single.Losses, batch[0].Losses)
}

func TestRunBatchCancelled(t *testing.T) {
	cfg := seeded(config.Config{NumArms: 3, MaxWinRatio: 0.4, NumTrials: 100, Runs: 4}, 1)
	sim, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.RunBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlayArmMismatch(t *testing.T) {
	env, err := environment.New([]float64{0.5, 0.5}, 10, environment.WithRandomSeed(1))
	require.NoError(t, err)
	agent, err := betats.NewBetaTS(3, betats.WithRandomSeed(1))
	require.NoError(t, err)

	assert.ErrorIs(t, Play(env, agent, nil), ErrInvalidParameter)
}

func TestPlayObservesOnlyChosenArm(t *testing.T) {
	env, err := environment.New([]float64{0.3, 0.6, 0.2}, 200, environment.WithRandomSeed(8))
	require.NoError(t, err)
	agent, err := betats.NewBetaTS(3, betats.WithRandomSeed(8))
	require.NoError(t, err)

	steps := 0
	rewards := 0
	require.NoError(t, Play(env, agent, func(trial, arm, reward int) {
		assert.Equal(t, steps, trial)
		steps++
		rewards += reward
	}))

	assert.Equal(t, 200, steps)
	assert.Equal(t, 200, env.Played())
	assert.Equal(t, rewards, sum(agent.Wins()))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	cfg := seeded(config.Config{WinRates: []float64{0.9, 0.1}, NumTrials: 300, Runs: 4}, 12)
	sim, err := New(cfg, WithMetrics(m))
	require.NoError(t, err)

	results, err := sim.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.runs))
	assert.Equal(t, 1200.0, testutil.ToFloat64(m.trials))

	var plays0, plays1, wins0 int
	for _, r := range results {
		plays0 += r.Wins[0] + r.Losses[0]
		plays1 += r.Wins[1] + r.Losses[1]
		wins0 += r.Wins[0]
	}
	assert.Equal(t, float64(plays0), testutil.ToFloat64(m.plays.WithLabelValues("1")))
	assert.Equal(t, float64(plays1), testutil.ToFloat64(m.plays.WithLabelValues("2")))
	assert.Equal(t, float64(wins0), testutil.ToFloat64(m.wins.WithLabelValues("1")))

	path := filepath.Join(t.TempDir(), "bandit.prom")
	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bandit_runs_total 4")
	assert.Contains(t, string(data), `bandit_arm_plays_total{arm="1"}`)
}
