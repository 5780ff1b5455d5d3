// Command despot runs DESPOT online POMDP planning against one of
// the built-in Problem Models from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "despot",
		Short: "Online POMDP planning with DESPOT",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newBenchCmd())
	return root
}
