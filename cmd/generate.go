// cmd/generate.go
package cmd

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/api/schemas"
	"github.com/voidhaze7x/genweaver/internal/browser"
	"github.com/voidhaze7x/genweaver/internal/fetch"
	"github.com/voidhaze7x/genweaver/internal/observability"
)

var (
	generateSite     string
	generateTimeout  time.Duration
	generateDownload bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Run one browser generation attempt and print the outcome as JSON.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		site := generateSite
		if site == "" {
			site = cfg.Generator.DefaultSite
		}
		timeout := generateTimeout
		if timeout <= 0 {
			timeout = cfg.Generator.Timeout
		}

		runner := browser.NewRunner(cfg, logger)
		outcome := runner.Run(cmd.Context(), schemas.GenerationRequest{
			Prompt:      strings.Join(args, " "),
			Destination: site,
			Timeout:     timeout,
		})

		if generateDownload && outcome.Status == schemas.StatusSuccess {
			downloadOutputs(cmd, outcome, logger)
		}

		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode outcome: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func downloadOutputs(cmd *cobra.Command, outcome schemas.GenerationOutcome, logger *zap.Logger) {
	d := fetch.NewDownloader(cfg.Output.Dir, logger)
	for _, ref := range outcome.Output {
		if !fetch.Fetchable(ref.Locator) {
			logger.Info("Skipping non-downloadable locator.", zap.String("url", ref.Locator))
			continue
		}
		path, err := d.Download(cmd.Context(), ref.Locator)
		if err != nil {
			logger.Warn("Artifact download failed.", zap.String("url", ref.Locator), zap.Error(err))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), "saved:", path)
	}
}

func init() {
	generateCmd.Flags().StringVar(&generateSite, "site", "", "generator site URL (default from config)")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", 0, "generation budget (default from config)")
	generateCmd.Flags().BoolVar(&generateDownload, "download", false, "download http(s) outputs to the configured output directory")
	rootCmd.AddCommand(generateCmd)
}
