package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/despot/eval"
	"github.com/samuelfneumann/despot/planner"
)

func newRunCmd() *cobra.Command {
	var problemName, configPath string
	var maxSteps int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single episode and print its trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			p, registry, err := buildProblem(problemName, cfg.Discount, cfg.MaxPolicySimLen, cfg.Noise)
			if err != nil {
				return err
			}

			if !cfg.Silence {
				cfg.Logf = func(format string, args ...any) {
					fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
				}
			}

			e := eval.New(p, registry, cfg)
			if verbose && !cfg.Silence {
				e.PrintStep = func(t eval.StepTrace) {
					fmt.Printf("step %3d  state=%-12s action=%-10s obs=%-10s reward=%7.2f  trials=%-5d gap=%.4f\n",
						t.Step, t.State, t.Action, t.Obs, t.Reward, t.Trials, t.RootGap)
				}
			}

			if maxSteps <= 0 {
				maxSteps = cfg.SimLen
			}

			result, err := e.RunEpisode(context.Background(), 0, maxSteps)
			if err != nil {
				return err
			}

			fmt.Printf("steps=%d discounted=%.4f undiscounted=%.4f terminal=%v\n",
				result.Steps, result.DiscountedReturn, result.UndiscountedReturn, result.Terminal)
			return nil
		},
	}

	cmd.Flags().StringVar(&problemName, "problem", "tiger", "problem model: tiger, rocksample, or lightdark")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML planner configuration")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "episode step budget (defaults to config sim_len)")
	cmd.Flags().BoolVar(&verbose, "verbose", true, "print a per-step trace")
	return cmd
}

func loadConfig(path string) (planner.Config, error) {
	if path == "" {
		return planner.NewConfig()
	}
	return planner.LoadConfig(path)
}
