package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataquality-cli/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review pending merge suggestions",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending merge suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		pending := pendingSuggestions(env, cmd)
		if len(pending) == 0 {
			fmt.Println("no pending suggestions")
			return nil
		}
		for _, a := range pending {
			fmt.Printf("%s  %s  primary %s  merges [%s]  score %.3f  (%s)\n",
				a.ID, a.Ts.Format("2006-01-02 15:04"), a.Payload.PrimaryID,
				strings.Join(a.Payload.MergeIDs, ", "), a.Payload.TopScore, a.Payload.Source)
		}
		return nil
	},
}

// pendingSuggestions filters out suggestions that were already accepted,
// rejected, or undone.
func pendingSuggestions(e *env, cmd *cobra.Command) []model.Action {
	ctx := cmd.Context()
	settled := make(map[string]bool)
	var pending []model.Action
	for _, a := range e.log.ListActions(ctx) {
		switch a.Type {
		case model.ActionAccepted, model.ActionRejected:
			if a.Payload != nil {
				settled[a.Payload.SourceID] = true
			}
		case model.ActionMergeSuggestion:
			if a.Payload != nil && !settled[a.ID] && a.UndoneTs == nil {
				pending = append(pending, a)
			}
		}
	}
	return pending
}

var reviewAcceptCmd = &cobra.Command{
	Use:   "accept <suggestion-id>...",
	Short: "Accept suggestions and execute the merges",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		for _, id := range args {
			res, err := env.orch.Accept(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("%s: merged %d, failed %d\n", id, len(res.Succeeded), len(res.Failed))
		}
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <suggestion-id>...",
	Short: "Reject suggestions without merging",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		for _, id := range args {
			if err := env.orch.Reject(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("%s: rejected\n", id)
		}
		return nil
	},
}

var reviewUndoCmd = &cobra.Command{
	Use:   "undo <action-id>",
	Short: "Undo a recorded action using its stored undo payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.orch.Undo(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: undone\n", args[0])
		return nil
	},
}

func init() {
	reviewCmd.AddCommand(reviewListCmd, reviewAcceptCmd, reviewRejectCmd, reviewUndoCmd)
	rootCmd.AddCommand(reviewCmd)
}
