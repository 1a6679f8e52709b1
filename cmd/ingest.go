package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/service"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load jobs, resumes and resume texts into the store",
}

var ingestJobCmd = &cobra.Command{
	Use:   "job",
	Short: "Ingest a job description from a JSON document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req service.JobRequest
		if err := decodeInput(cmd, &req); err != nil {
			return err
		}
		req.Update, _ = cmd.Flags().GetBool("update")

		return withService(cmd, func(ctx context.Context, svc *service.Service, log *zap.Logger) error {
			job, err := svc.IngestJob(ctx, req)
			if err != nil {
				return err
			}
			log.Info("job ingested", zap.String("job_id", job.JobID), zap.String("state", string(job.ProcessingState)))
			return printJSON(cmd, job)
		})
	},
}

var ingestResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Ingest a structured resume from a JSON document and match it against every job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req service.ResumeRequest
		if err := decodeInput(cmd, &req.Resume); err != nil {
			return err
		}
		req.Update, _ = cmd.Flags().GetBool("update")

		return withService(cmd, func(ctx context.Context, svc *service.Service, log *zap.Logger) error {
			res, err := svc.IngestResume(ctx, req)
			if err != nil {
				return err
			}
			if res.MatchError != "" {
				log.Warn("resume stored but matching failed", zap.String("resume_id", res.ResumeID), zap.String("error", res.MatchError))
			}
			return printJSON(cmd, res)
		})
	},
}

var ingestTextCmd = &cobra.Command{
	Use:   "text <resume-id>",
	Short: "Store the free-text body of a resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd)
		if err != nil {
			return err
		}
		update, _ := cmd.Flags().GetBool("update")

		return withService(cmd, func(ctx context.Context, svc *service.Service, log *zap.Logger) error {
			if err := svc.PutResumeText(ctx, args[0], string(raw), update); err != nil {
				return err
			}
			log.Info("resume text stored", zap.String("resume_id", args[0]), zap.Int("length", len(raw)))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	for _, c := range []*cobra.Command{ingestJobCmd, ingestResumeCmd, ingestTextCmd} {
		c.Flags().StringP("file", "f", "-", "input file, - reads stdin")
		c.Flags().Bool("update", false, "replace an existing record instead of failing")
		ingestCmd.AddCommand(c)
	}
}

func withService(cmd *cobra.Command, fn func(context.Context, *service.Service, *zap.Logger) error) error {
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
	return fn(ctx, svc, rt.logger)
}

func readInput(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

func decodeInput(cmd *cobra.Command, out any) error {
	raw, err := readInput(cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
