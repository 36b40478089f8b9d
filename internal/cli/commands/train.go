package commands

import (
	"errors"
	"fmt"

	"doctag/internal/artifact"
	"doctag/internal/corpus"
	"doctag/internal/ml"
	"doctag/internal/retrain"

	"github.com/spf13/cobra"
)

var trainOpts struct {
	corpusPath string
	promote    bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "train a model on a corpus and publish it",
	Long: `Split the corpus 70/15/15 by label, train the TF-IDF + linear SVM model and
publish it as a new artifact named tfidf_svm_YYYYMMDD_HHMMSS. The artifact is
only served once promoted.`,
	Example: `  $ doctagctl train
  $ doctagctl train --corpus data/datasets/train.csv --promote`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := trainOpts.corpusPath
		if path == "" {
			path = a.Config.CorpusPath
		}
		params := a.Retrain.Params()
		params.NamePrefix = "tfidf_svm"
		orch := retrain.New(a.Ledger, a.Store, a.Taxonomy, a.Normalizer, path,
			retrain.WithLogger(a.Log), retrain.WithParams(params))

		runID := orch.NewRunID()
		pub, err := orch.TrainAndPublish(cmd.Context(), runID, retrain.Prepared{CombinedPath: path})
		if err != nil {
			return err
		}
		out := map[string]any{"artifact": pub.ArtifactName, "metrics": pub.Metrics, "weak_categories": pub.WeakCategories,
			"train_size": pub.TrainSize, "val_size": pub.ValSize, "test_size": pub.TestSize}
		if trainOpts.promote {
			if _, err := a.Store.Promote(pub.ArtifactName); err != nil {
				return err
			}
			out["promoted"] = true
		}
		return printJSON(stdout(cmd), out)
	},
}

var evalOpts struct {
	name       string
	corpusPath string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "evaluate an artifact against a labelled corpus",
	Example: `  $ doctagctl evaluate --corpus data/datasets/retraining/run_20250615_120000/test.jsonl
  $ doctagctl evaluate --name tfidf_svm_retrained_20250615_120000 --corpus holdout.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var art *artifact.Artifact
		if evalOpts.name != "" {
			art, err = a.Store.Load(evalOpts.name)
		} else {
			art, err = a.Store.LoadActive()
		}
		if err != nil {
			return fmt.Errorf("load artifact: %w", err)
		}
		path := evalOpts.corpusPath
		if path == "" {
			path = a.Config.CorpusPath
		}
		examples, err := corpus.Load(cmd.Context(), path)
		if err != nil {
			return err
		}
		if len(examples) == 0 {
			return errors.New("evaluation corpus is empty")
		}
		d := corpus.Dataset(examples, a.Normalizer.Normalize)
		pred, err := art.Model.PredictAll(cmd.Context(), d.Texts)
		if err != nil {
			return err
		}
		eval := ml.Evaluate(d.Labels, pred, art.Metadata.Classes)
		return printJSON(stdout(cmd), map[string]any{
			"artifact":        art.Metadata.Name,
			"corpus":          path,
			"evaluation":      eval,
			"weak_categories": eval.WeakCategories(0.80),
		})
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainOpts.corpusPath, "corpus", "c", "", "training corpus, default the configured corpus path")
	trainCmd.Flags().BoolVar(&trainOpts.promote, "promote", false, "make the new artifact active")

	evaluateCmd.Flags().StringVarP(&evalOpts.name, "name", "n", "", "artifact name, default the active one")
	evaluateCmd.Flags().StringVarP(&evalOpts.corpusPath, "corpus", "c", "", "labelled corpus, default the configured corpus path")
}
