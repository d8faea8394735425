package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Print a catalog's summary, generating it on first use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Pipeline.EnsureSummary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
