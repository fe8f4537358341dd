package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect scan history and the action log",
}

var historyScansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List past scans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		scans := env.log.ListScans(cmd.Context())
		if len(scans) == 0 {
			fmt.Println("no scans recorded")
			return nil
		}
		for _, s := range scans {
			fmt.Printf("%s  %s  %-18s %-10s %v\n",
				s.ID, s.Ts.Format("2006-01-02 15:04"), s.Tool, s.ObjectType, s.Metrics)
		}
		return nil
	},
}

var historyActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the action log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		actions := env.log.ListActions(cmd.Context())
		if len(actions) == 0 {
			fmt.Println("no actions recorded")
			return nil
		}
		for _, a := range actions {
			undone := ""
			if a.UndoneTs != nil {
				undone = "  (undone)"
			}
			fmt.Printf("%s  %s  %-16s target %s%s\n",
				a.ID, a.Ts.Format("2006-01-02 15:04"), a.Type, a.TargetID, undone)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear scan history and the action log",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		env.log.ClearScans(cmd.Context())
		env.log.ClearActions(cmd.Context())
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyScansCmd, historyActionsCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
