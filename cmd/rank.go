package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/export"
	"github.com/spigell/resume-ranker/internal/service"
)

var rankCmd = &cobra.Command{
	Use:   "rank <job-id>",
	Short: "Score the top candidates of a job and print the final shortlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())

		svc, err := rt.newService(ctx)
		if err != nil {
			return err
		}

		keywords, _ := cmd.Flags().GetStringSlice("keywords")
		region, _ := cmd.Flags().GetString("region")
		strategy, _ := cmd.Flags().GetString("strategy")

		result, err := svc.FetchRanked(ctx, service.RankRequest{
			JobID:          args[0],
			FilterKeywords: keywords,
			RegionID:       region,
			Strategy:       strategy,
		})
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			saved, err := export.SaveShortlist(path, result)
			if err != nil {
				return err
			}
			rt.logger.Info("shortlist exported", zap.String("filename", saved))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringSlice("keywords", nil, "keep only candidates sharing every keyword")
	rankCmd.Flags().String("region", "", "keep only candidates located in the region id")
	rankCmd.Flags().String("strategy", "", "ranking strategy: overlap, experience or recency")
	rankCmd.Flags().String("xlsx", "", "also write the shortlist to this XLSX file")
}
