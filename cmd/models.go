package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/cost"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/resilience"
)

var modelsEstimateTokens int64

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog with pricing and selection scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		models := catalog.Default()
		if cfg.Models.CatalogPath != "" {
			loaded, err := catalog.LoadFile(cfg.Models.CatalogPath)
			if err != nil {
				return err
			}
			models = loaded
		}

		breakers := resilience.NewBreakerSet(resilience.FromCircuitConfig(
			cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs))
		stats := llm.NewStats()
		scorer := llm.NewScorer(models, nil, breakers, stats)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tIN $/1K\tOUT $/1K\tQUALITY\tSPEED\tEST COST\tSTATE")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%.2f\t%.2f\t$%.4f\t%s\n",
				m.Key(), m.InputPer1K, m.OutputPer1K, m.Quality, m.Speed,
				cost.EstimateSymmetric(m, modelsEstimateTokens),
				breakers.Get(m.Key()).State(),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		for _, name := range []string{llm.StrategyBudget, llm.StrategyBalanced, llm.StrategyPremium} {
			pick := scorer.Select(llm.SelectRequest{
				Strategy:        name,
				EstimatedTokens: modelsEstimateTokens,
			})
			if pick == nil {
				fmt.Printf("%s: no healthy model\n", name)
				continue
			}
			fmt.Printf("%s: %s (score %.3f, est $%.4f)\n",
				name, pick.Model.Key(), pick.Score, pick.EstimatedCostUSD)
		}
		return nil
	},
}

func init() {
	modelsCmd.Flags().Int64Var(&modelsEstimateTokens, "tokens", 1000, "token count for cost estimates")
	rootCmd.AddCommand(modelsCmd)
}
