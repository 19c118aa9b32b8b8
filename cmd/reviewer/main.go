package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "regflow-reviewer",
		Short:        "Review submitted registration requests",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL DSN (defaults to DATABASE_URL)")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(decideCmd("approve", "Approve a pending request"))
	rootCmd.AddCommand(decideCmd("reject", "Reject a pending request"))
	return rootCmd
}
