package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchCmd = &cobra.Command{
	Use:   "match [job-id]",
	Short: "Run the bulk matching pass for a job, a resume or every pending job",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		resumeID, _ := cmd.Flags().GetString("resume")
		pending, _ := cmd.Flags().GetBool("pending")

		switch {
		case resumeID != "":
			n, err := rt.matcher.ProcessResume(ctx, resumeID)
			if err != nil {
				return err
			}
			rt.logger.Info("resume matched", zap.String("resume_id", resumeID), zap.Int("jobs", n))
		case len(args) == 1:
			stats, err := rt.matcher.ProcessJob(ctx, args[0])
			if err != nil {
				return err
			}
			rt.logger.Info("job matched",
				zap.String("job_id", args[0]),
				zap.Int("scanned", stats.Scanned),
				zap.Int("retained", stats.Retained),
			)
		case pending:
			n, err := rt.matcher.ProcessPending(ctx)
			rt.logger.Info("pending jobs processed", zap.Int("count", n))
			return err
		default:
			return errors.New("pass a job id, --resume or --pending")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("resume", "", "match a single resume against every job")
	matchCmd.Flags().Bool("pending", false, "process every pending job")
}
