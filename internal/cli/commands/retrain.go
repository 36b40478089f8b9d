package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "report whether feedback calls for retraining",
	Long: `Read the feedback window and the active model's expected accuracy and print
the retrain decision. Nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		d, err := a.Retrain.Check(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stdout(cmd), d)
	},
}

var retrainForce bool

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "run the retraining loop once in-process",
	Long: `Evaluate feedback and, when the volume and drift gates pass (or --force is
given), merge recovered feedback into a copy of the corpus, train and publish a
new artifact. The active artifact is not changed; use promote.`,
	Example: `  $ doctagctl retrain
  $ doctagctl retrain --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		rep := a.Retrain.Run(cmd.Context(), retrainForce)
		if a.Runs != nil && rep.State.Terminal() {
			if err := a.Runs.Upsert(cmd.Context(), rep); err != nil {
				a.Log.Warn("retrain run not mirrored", "run_id", rep.RunID, "err", err)
			}
		}
		if err := printJSON(stdout(cmd), rep); err != nil {
			return err
		}
		return rep.Err()
	},
}

var promoteCmd = &cobra.Command{
	Use:     "promote NAME",
	Short:   "make a published artifact the active model",
	Example: `  $ doctagctl promote tfidf_svm_retrained_20250615_120000`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		art, err := a.Store.Promote(args[0])
		if err != nil {
			return err
		}
		return printJSON(stdout(cmd), map[string]any{"active": art.Metadata.Name, "metrics": art.Metadata.Metrics})
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "list recent retraining runs from postgres",
	Example: `  $ doctagctl runs --limit 5`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Runs == nil {
			return errors.New("run history needs postgres_url (DOCTAG_POSTGRES_URL)")
		}
		runs, err := a.Runs.ListRecent(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		return printJSON(stdout(cmd), runs)
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "runs to list")
	retrainCmd.Flags().BoolVarP(&retrainForce, "force", "f", false, "skip the volume and drift gates")
}
