package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/symptomscan/pkg/common/config"
	"github.com/synaptica-ai/symptomscan/pkg/gateway/httpclient"
	"github.com/synaptica-ai/symptomscan/pkg/serving/inference"
	"github.com/synaptica-ai/symptomscan/pkg/serving/predictor"
	"github.com/synaptica-ai/symptomscan/pkg/serving/ranking"
)

func newPredictCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict SYMPTOM...",
		Short: "Predict a condition from symptoms using local artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBundle(cmd)
			if err != nil {
				return err
			}
			topK, _ := cmd.Flags().GetInt("top-k")
			minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

			svc := inference.NewService(predictor.NewStaticRegistry(b), inference.Options{
				Ranking:     ranking.Options{TopK: topK, MinConfidence: minConfidence},
				MaxSymptoms: cfg.MaxSymptoms,
			}, nil)
			res, err := svc.Infer(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Response())
		},
	}
	cmd.Flags().Int("top-k", cfg.TopK, "Maximum number of predictions to return")
	cmd.Flags().Float64("min-confidence", cfg.MinConfidence, "Drop alternatives below this confidence")
	return cmd
}

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running inference service",
	}
	cmd.PersistentFlags().String("url", "http://localhost:8090", "Base URL of the inference service")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "Per-attempt timeout")
	cmd.PersistentFlags().Int("attempts", 3, "Attempts before giving up on server errors")

	cmd.AddCommand(&cobra.Command{
		Use:   "predict SYMPTOM...",
		Short: "Ask the service for a prediction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := remoteClient(cmd).Predict(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "symptoms",
		Short: "List the symptoms the service recognizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			symptoms, err := remoteClient(cmd).Symptoms(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range symptoms {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	})
	return cmd
}

func remoteClient(cmd *cobra.Command) *httpclient.PredictClient {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	attempts, _ := cmd.Flags().GetInt("attempts")
	return httpclient.NewPredictClient(url, timeout, attempts)
}
