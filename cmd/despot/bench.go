package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/despot/eval"
)

// newBenchCmd compares the DEFAULT and RANDOM lower-bound strategies
// over a short batch of episodes, for quick sanity checks when tuning
// a bound strategy. A name the problem does not register is skipped;
// other registered names (e.g. light-dark's NOISY) are not compared.
func newBenchCmd() *cobra.Command {
	var problemName, configPath string
	var numEpisodes, maxSteps int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare DEFAULT and RANDOM lower bounds over a short batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if maxSteps <= 0 {
				maxSteps = cfg.SimLen
			}

			p, registry, err := buildProblem(problemName, cfg.Discount, cfg.MaxPolicySimLen, cfg.Noise)
			if err != nil {
				return err
			}

			for _, name := range []string{"DEFAULT", "RANDOM"} {
				if _, err := registry.Lower(name); err != nil {
					continue
				}
				runCfg := cfg
				runCfg.LowerBoundName = name

				e := eval.New(p, registry, runCfg)
				summary, err := e.RunEvaluation(context.Background(), numEpisodes, maxSteps)
				if err != nil {
					return fmt.Errorf("bench: %s: %w", name, err)
				}
				fmt.Printf("%-8s episodes=%-4d discounted mean=%.4f (+/- %.4f)\n",
					name, summary.NumEpisodes, summary.MeanDiscounted, summary.StdErrDiscounted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&problemName, "problem", "tiger", "problem model: tiger, rocksample, or lightdark")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML planner configuration")
	cmd.Flags().IntVar(&numEpisodes, "episodes", 30, "number of episodes per bound strategy")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "episode step budget (defaults to config sim_len)")
	return cmd
}
