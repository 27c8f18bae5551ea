// Package simulation runs Thompson Sampling against a Bernoulli bandit
// environment, one trial at a time, and aggregates the outcome.
package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	betats "github.com/n0madic/go-bernoulli-bandits/beta-ts"
	"github.com/n0madic/go-bernoulli-bandits/config"
	"github.com/n0madic/go-bernoulli-bandits/environment"
)

// ErrInvalidParameter matches configuration errors from any layer.
var ErrInvalidParameter = environment.ErrInvalidParameter

// ErrDistributionSampling is re-exported from the agent package.
var ErrDistributionSampling = betats.ErrDistributionSampling

// Simulator runs simulations for a validated configuration.
type Simulator struct {
	cfg      config.Config
	baseSeed uint64
	logger   *slog.Logger
	metrics  *Metrics
	sampler  func(src rand.Source) betats.Sampler
}

// Option defines a functional option for configuring a Simulator
type Option func(*Simulator)

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithMetrics records every finished run into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) {
		s.metrics = m
	}
}

// WithSamplerFactory replaces the gonum Beta sampler. The factory receives the
// run's random source.
func WithSamplerFactory(f func(src rand.Source) betats.Sampler) Option {
	return func(s *Simulator) {
		s.sampler = f
	}
}

// New validates cfg and returns a Simulator. A nil cfg.Seed picks a time
// based base seed, which is then fixed for the simulator's lifetime.
func New(cfg config.Config, options ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if cfg.Seed != nil {
		s.baseSeed = *cfg.Seed
	} else {
		s.baseSeed = uint64(time.Now().UnixNano())
	}

	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Config returns the validated configuration.
func (s *Simulator) Config() config.Config { return s.cfg }

// BaseSeed returns the seed of run 0.
func (s *Simulator) BaseSeed() uint64 { return s.baseSeed }

// Run executes a single simulation seeded with the base seed.
func (s *Simulator) Run() (*Result, error) {
	return s.runOne(s.baseSeed)
}

// RunBatch executes cfg.Runs independent simulations, run i seeded with
// BaseSeed()+i, on up to cfg.Workers goroutines. Each run owns its
// environment, agent and random source, so results do not depend on the
// worker count. The first error cancels runs that have not started.
func (s *Simulator) RunBatch(ctx context.Context) ([]*Result, error) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, s.cfg.Runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range results {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.runOne(s.baseSeed + uint64(i))
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// newSource derives a PCG stream from seed. Seed 0 is a valid seed here.
func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// runOne builds a private environment and agent sharing one source: the
// environment draws its win rates and outcome table first, then the agent
// consumes the same stream for its Beta samples.
func (s *Simulator) runOne(seed uint64) (*Result, error) {
	start := time.Now()
	src := newSource(seed)

	env, err := s.newEnvironment(src)
	if err != nil {
		return nil, err
	}

	agentOpts := []betats.Option{betats.WithSource(src)}
	if s.sampler != nil {
		agentOpts = append(agentOpts, betats.WithSampler(s.sampler(src)))
	}
	agent, err := betats.NewBetaTS(env.NArms(), agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	res := &Result{
		RunID:    uuid.New(),
		Seed:     seed,
		WinRates: env.WinRates(),
		Trials:   env.Trials(),
		Choices:  make([]int, 0, env.Trials()),
	}

	log := s.logger.With("run_id", res.RunID.String(), "seed", seed)
	log.Debug("simulation started", "arms", env.NArms(), "trials", env.Trials(), "lazy", env.Lazy())

	if err := Play(env, agent, func(trial, arm, reward int) {
		res.Choices = append(res.Choices, arm)
	}); err != nil {
		log.Error("simulation aborted", "error", err)
		return nil, err
	}

	res.Wins = agent.Wins()
	res.Losses = agent.Losses()
	res.Agent = agent
	if wins, losses, ok := env.TableTotals(); ok {
		res.TableWins = wins
		res.TableLosses = losses
	}
	res.Duration = time.Since(start)

	stats := res.Stats()
	log.Info("simulation finished",
		"best_arm", stats.BestArm,
		"best_plays", stats.BestPlays,
		"regret", res.Regret(),
		"duration", res.Duration)

	if s.metrics != nil {
		s.metrics.Observe(res)
	}
	return res, nil
}

func (s *Simulator) newEnvironment(src rand.Source) (*environment.Environment, error) {
	opts := []environment.Option{environment.WithSource(src)}
	if s.cfg.LazyOutcomes {
		opts = append(opts, environment.WithLazyOutcomes())
	}
	if len(s.cfg.WinRates) > 0 {
		return environment.New(s.cfg.WinRates, s.cfg.NumTrials, opts...)
	}
	return environment.NewRandom(s.cfg.NumArms, s.cfg.MaxWinRatio, s.cfg.NumTrials, opts...)
}

// Play drives agent against env until every trial has been played. For each
// trial the agent selects an arm, only that arm is pulled, and the agent is
// updated with the reward. observe, if not nil, sees every step.
func Play(env *environment.Environment, agent *betats.BetaTS, observe func(trial, arm, reward int)) error {
	if env.NArms() != agent.NArms() {
		return fmt.Errorf("%w: environment has %d arms, agent has %d", ErrInvalidParameter, env.NArms(), agent.NArms())
	}

	for trial := env.Played(); trial < env.Trials(); trial++ {
		arm, err := agent.SelectAction()
		if err != nil {
			return err
		}
		reward, err := env.Pull(arm)
		if err != nil {
			return err
		}
		if err := agent.Update(arm, reward); err != nil {
			return err
		}
		if observe != nil {
			observe(trial, arm, reward)
		}
	}
	return nil
}
