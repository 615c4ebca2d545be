package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"impairbench/internal/netem"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the built-in impairment rule catalog",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range netem.Catalog() {
			params := "-"
			if !r.Baseline() {
				params = r.String()
			}
			fmt.Printf("%-12s %-34s %s\n", r.Name, r.Description, params)
		}
		fmt.Println("custom:<params>  caller-supplied netem parameters, applied verbatim")
	},
}
