package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/symptomscan/pkg/common/config"
	"github.com/synaptica-ai/symptomscan/pkg/serving/predictor"
)

// version is set via -ldflags at build time.
var version = "(devel)"

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "symptomctl",
		Short:         "Inspect model artifacts and run symptom predictions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("model-dir", cfg.ModelDir, "Directory holding model.json and catalog.yaml (overrides MODEL_DIR)")
	root.PersistentFlags().String("model-file", cfg.ModelFile, "Model artifact file name")
	root.PersistentFlags().String("catalog-file", cfg.CatalogFile, "Condition catalog file name")
	root.PersistentFlags().Bool("partial-match", cfg.VocabularyPartialMatch, "Match symptoms by substring when no exact match exists")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newPredictCmd(cfg))
	root.AddCommand(newSymptomsCmd())
	root.AddCommand(newRemoteCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "symptomctl", version)
		},
	})
	return root
}

// loadBundle reads artifacts using the persistent flags.
func loadBundle(cmd *cobra.Command) (*predictor.Bundle, error) {
	flags := cmd.Flags()
	dir, _ := flags.GetString("model-dir")
	modelFile, _ := flags.GetString("model-file")
	catalogFile, _ := flags.GetString("catalog-file")
	partial, _ := flags.GetBool("partial-match")
	return predictor.Source{
		Dir:          dir,
		ModelFile:    modelFile,
		CatalogFile:  catalogFile,
		PartialMatch: partial,
	}.Load()
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the model artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(cmd)
			if err != nil {
				return fmt.Errorf("invalid artifacts: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), b.Status())
		},
	}
}

func newSymptomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List the symptom vocabulary in feature order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(cmd)
			if err != nil {
				return err
			}
			for _, label := range b.Vocabulary.Labels() {
				fmt.Fprintln(cmd.OutOrStdout(), label)
			}
			return nil
		},
	}
}
