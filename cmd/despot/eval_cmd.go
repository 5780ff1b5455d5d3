package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/despot/eval"
	"github.com/samuelfneumann/despot/experiment"
)

func newEvalCmd() *cobra.Command {
	var problemName, configPath, savePath string
	var numEpisodes, maxSteps int

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run many episodes and report average return",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			p, registry, err := buildProblem(problemName, cfg.Discount, cfg.MaxPolicySimLen, cfg.Noise)
			if err != nil {
				return err
			}

			e := eval.New(p, registry, cfg)
			if maxSteps <= 0 {
				maxSteps = cfg.SimLen
			}

			var trackers []experiment.Tracker
			if savePath != "" {
				trackers = append(trackers, experiment.NewReturnTracker(savePath))
			}

			batch := experiment.NewBatch(e, numEpisodes, maxSteps, trackers)
			summary, err := batch.Run(context.Background())
			if err != nil {
				return err
			}
			if err := batch.Save(); err != nil {
				return err
			}

			fmt.Printf("episodes=%d\n", summary.NumEpisodes)
			fmt.Printf("discounted   mean=%.4f stderr=%.4f\n", summary.MeanDiscounted, summary.StdErrDiscounted)
			fmt.Printf("undiscounted mean=%.4f stderr=%.4f\n", summary.MeanUndiscounted, summary.StdErrUndiscounted)
			fmt.Printf("mean episode length=%.2f\n", summary.MeanSteps)
			return nil
		},
	}

	cmd.Flags().StringVar(&problemName, "problem", "tiger", "problem model: tiger, rocksample, or lightdark")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML planner configuration")
	cmd.Flags().StringVar(&savePath, "save", "", "optional path to persist per-episode discounted returns")
	cmd.Flags().IntVar(&numEpisodes, "episodes", 100, "number of episodes to run")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "episode step budget (defaults to config sim_len)")
	return cmd
}
