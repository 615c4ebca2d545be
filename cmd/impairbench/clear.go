package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"impairbench/internal/netem"
)

var clearIface string

// clearCmd is the recovery hatch for a host left with a rule installed
// (power loss, SIGKILL of the harness).
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove any impairment rule from an interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := netem.New(clearIface)
		if err := ctrl.Clear(cmd.Context()); err != nil {
			return err
		}
		status, err := ctrl.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", clearIface, status)
		return nil
	},
}

func init() {
	clearCmd.Flags().StringVar(&clearIface, "iface", "eth0", "Network interface to clear")
}
