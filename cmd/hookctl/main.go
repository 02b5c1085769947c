package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hookctl",
	Short: "HookGate operator CLI",
	Long: `hookctl is the operator tool for HookGate.

It signs submissions and pushes synthetic traffic at a running gateway.
Key generation and schema setup live here too.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
