package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "donateo",
	Short: "Donateo pickup chat engine",
	Long: `Donateo connects the donor and the receiver of an approved donation in a
moderated chat where they arrange the pickup.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(
		NewServeCommand(),
		NewRelayCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
