package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Inspect per-item failures from bulk operations",
}

var failuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded failures, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		failures := env.log.ListFailures(cmd.Context())
		if len(failures) == 0 {
			fmt.Println("no failures recorded")
			return nil
		}
		for _, f := range failures {
			fmt.Printf("%s  %s  %s  %v\n", f.ID, f.Ts.Format("2006-01-02 15:04"), f.Reason, f.Details)
		}
		return nil
	},
}

var failuresClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the failure log",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		env.log.ClearFailures(cmd.Context())
		return nil
	},
}

func init() {
	failuresCmd.AddCommand(failuresListCmd, failuresClearCmd)
	rootCmd.AddCommand(failuresCmd)
}
