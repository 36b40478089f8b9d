package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doctag/internal/pipeline"
	"doctag/internal/workflows"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

var classifyUser string

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "classify documents and log the predictions",
	Example: `  $ doctagctl classify factura.pdf
  $ doctagctl classify -u ana nomina_marzo.docx contrato.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results := make([]any, 0, len(args))
		var failed int
		for _, path := range args {
			res, err := a.Pipeline.Analyze(cmd.Context(), path, classifyUser)
			if err != nil {
				if !errors.Is(err, pipeline.ErrExtraction) {
					return err
				}
				failed++
				results = append(results, map[string]any{"file": path, "error": err.Error()})
				continue
			}
			results = append(results, res)
		}
		if err := printJSON(stdout(cmd), results); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents could not be read", failed, len(args))
		}
		return nil
	},
}

var folderOpts struct {
	batchID       string
	maxConcurrent int
	wait          bool
}

var classifyFolderCmd = &cobra.Command{
	Use:   "classify-folder DIR",
	Short: "classify every document in a folder through the worker",
	Long: `Start a folder classification workflow on the Temporal worker. Each readable
document is classified and logged; a summary is written under
<data_dir>/batches/<batch-id>/summary.json.`,
	Example: `  $ doctagctl classify-folder /srv/inbox -u ana --wait`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(slog.Default())})
		if err != nil {
			return fmt.Errorf("dial temporal: %w", err)
		}
		defer c.Close()

		batchID := folderOpts.batchID
		if batchID == "" {
			batchID = time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
		}
		we, err := c.ExecuteWorkflow(cmd.Context(), tclient.StartWorkflowOptions{
			ID:        workflows.ClassifyFolderWorkflowID(batchID),
			TaskQueue: cfg.TemporalTaskQueue,
		}, workflows.ClassifyFolderWorkflow, workflows.ClassifyFolderInput{
			BatchID:       batchID,
			InputDir:      args[0],
			Username:      classifyUser,
			MaxConcurrent: folderOpts.maxConcurrent,
		})
		if err != nil {
			return fmt.Errorf("start folder workflow: %w", err)
		}
		fmt.Fprintf(stdout(cmd), "batch %s started (workflow %s)\n", batchID, we.GetID())
		if !folderOpts.wait {
			return nil
		}
		var result string
		if err := we.Get(cmd.Context(), &result); err != nil {
			return err
		}
		qctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		resp, err := c.QueryWorkflow(qctx, we.GetID(), we.GetRunID(), workflows.QueryGetProgress)
		if err != nil {
			return err
		}
		var progress workflows.ClassifyFolderProgress
		if err := resp.Get(&progress); err != nil {
			return err
		}
		return printJSON(stdout(cmd), progress)
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyUser, "user", "u", "", "username for folder suggestions")
	classifyFolderCmd.Flags().StringVarP(&classifyUser, "user", "u", "", "username for folder suggestions")
	classifyFolderCmd.Flags().StringVar(&folderOpts.batchID, "batch-id", "", "batch id, default a timestamped one")
	classifyFolderCmd.Flags().IntVar(&folderOpts.maxConcurrent, "max-concurrent", 4, "documents classified at once")
	classifyFolderCmd.Flags().BoolVar(&folderOpts.wait, "wait", false, "wait for the batch and print its progress")
}
