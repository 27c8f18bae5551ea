// Package report renders simulation results for people: a console summary
// and an optional HTML chart.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/n0madic/go-bernoulli-bandits/simulation"
)

// Options controls report rendering.
type Options struct {
	NoColor bool
	// Oracle adds the full-information totals of the outcome table, i.e. what
	// every machine would have paid had it been played on every trial.
	Oracle bool
}

const ruleWidth = 55

// Write prints the per-machine summary and the best machine of a run.
// Machines are numbered from 1.
func Write(w io.Writer, res *simulation.Result, opts Options) error {
	au := aurora.NewAurora(!opts.NoColor)
	stats := res.Stats()
	rule := strings.Repeat("=", ruleWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "\n\t\t%s\n", au.Bold("Data results of this run"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	for i, p := range res.WinRates {
		name := fmt.Sprintf("Machine %d", i+1)
		if i == stats.BestArm {
			fmt.Fprintf(&b, "\t\t%s Win Ratio: %.2f\n", au.Green(name), p)
		} else {
			fmt.Fprintf(&b, "\t\t%s Win Ratio: %.2f\n", name, p)
		}
		fmt.Fprintf(&b, "\t\t%s\n", strings.Repeat("-", 28))
		fmt.Fprintf(&b, "\t\t  Wins: %d    Losses: %d\n", stats.Wins[i], stats.Losses[i])
		if opts.Oracle && res.TableWins != nil {
			fmt.Fprintf(&b, "\t\t  Table wins: %d    Table losses: %d\n", res.TableWins[i], res.TableLosses[i])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "\n\tThe best machine to play was %s, with \n\t%d total choice distributions of %d.\n",
		au.Bold(au.Green(fmt.Sprintf("Machine %d", stats.BestArm+1))), stats.BestPlays, res.Trials)
	fmt.Fprintf(&b, "\tTotal wins: %d    Expected regret: %.2f\n", res.TotalWins(), res.Regret())
	if stats.BestArm != res.TrueBestArm() {
		fmt.Fprintf(&b, "\t%s\n", au.Yellow(fmt.Sprintf("Machine %d has the highest true win ratio.", res.TrueBestArm()+1)))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteBatch prints the aggregate of a batch of runs.
func WriteBatch(w io.Writer, sum simulation.Summary, opts Options) error {
	au := aurora.NewAurora(!opts.NoColor)
	rule := strings.Repeat("=", ruleWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "\n\t\t%s\n", au.Bold("Batch results"))
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "\tRuns: %d\n", sum.Runs)
	fmt.Fprintf(&b, "\tBest machine identified: %d/%d (%s)\n",
		sum.Identified, sum.Runs, au.Green(fmt.Sprintf("%.1f%%", 100*sum.IdentificationRate())))
	fmt.Fprintf(&b, "\tShare of trials on best machine: %.3f ± %.3f\n", sum.BestShareMean, sum.BestShareStdDev)
	fmt.Fprintf(&b, "\tExpected regret: %.2f ± %.2f\n", sum.RegretMean, sum.RegretStdDev)
	fmt.Fprintf(&b, "\n%s\n\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}
