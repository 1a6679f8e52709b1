package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/bulk"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("aborted")

var deleteCmd = &cobra.Command{
	Use:       "delete <job|resume> <id>",
	Short:     "Delete a job or a resume together with its match records",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"job", "resume"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id := args[0], args[1]
		if kind != "job" && kind != "resume" {
			return fmt.Errorf("unknown kind %q, expected job or resume", kind)
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			prompt := promptui.Select{
				Label: fmt.Sprintf("Delete %s %s?", kind, id),
				Items: []string{PromptNo, PromptYes},
			}
			_, answer, err := prompt.Run()
			if err != nil {
				return err
			}
			if answer != PromptYes {
				return errAborted
			}
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		if kind == "resume" {
			return rt.matcher.RemoveResume(ctx, id)
		}

		unlock, err := rt.locker.Lock(ctx, bulk.JobLockKey(id))
		if err != nil {
			return err
		}
		defer unlock()

		if err := rt.store.DeleteJob(ctx, id); err != nil {
			return err
		}
		rt.logger.Info("job deleted", zap.String("job_id", id))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
