package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"impairbench/internal/artifact"
	"impairbench/internal/config"
)

var (
	mergeRoot    string
	mergePrefix  string
	mergeClients int
)

// mergeCmd re-runs the merger over an existing results directory, for
// when a run was interrupted after the clients wrote their files.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Re-merge the client CSVs of one scenario prefix",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout := artifact.Layout{Root: mergeRoot}
		inputs := make([]string, 0, mergeClients)
		for i := 1; i <= mergeClients; i++ {
			inputs = append(inputs, layout.ClientCSV(mergePrefix, i))
		}
		report, err := artifact.Merge(inputs, layout.MergedCSV(mergePrefix))
		if err != nil {
			return err
		}
		if !report.Written {
			fmt.Println("no client files found; nothing written")
			return nil
		}
		fmt.Printf("merged %d file(s), %d rows -> %s\n", report.MergedFiles, report.Rows, report.Output)
		for _, s := range report.Skipped {
			fmt.Printf("skipped: %s\n", s)
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeRoot, "root", ".", "Artifact root directory")
	mergeCmd.Flags().StringVar(&mergePrefix, "prefix", "", "Scenario output prefix, e.g. 20260823_120000_loss_2")
	mergeCmd.Flags().IntVar(&mergeClients, "clients", config.DefaultClients, "Number of client files to look for")
	mergeCmd.MarkFlagRequired("prefix")
}
