package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "impairbench",
	Short: "Network-impairment test orchestrator",
	Long: "impairbench drives repeatable client/server experiments under synthetic\n" +
		"network degradation (tc netem), captures traffic, and merges per-client\n" +
		"metric files into one dataset per scenario.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(mergeCmd)
}
