package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nikhil-Rao20/Vertebrae-Seg/pkg/config"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vertseg",
	Short: "Post-processing toolkit for per-vertebra segmentation volumes",
	Long: `vertseg cleans noisy vertebrae segmentation predictions and quantifies
what the cleanup changed.

The pipeline per vertebra:
  - morphological cleaning (hole fill, closing, opening)
  - largest connected component selection
  - Gaussian boundary smoothing
  - a second largest-component pass

Subcommands cover the whole workflow: 'clean' post-processes patient
volumes, 'diff' compares raw against cleaned predictions label by label,
and 'export' emits surface meshes for the web overlay viewer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "vertseg.yaml", "config file with pipeline parameters",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Output.Verbose = true
		}

		logCfg := zap.NewProductionConfig()
		if cfg.Output.Verbose {
			logCfg = zap.NewDevelopmentConfig()
		}
		logger, err = logCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	}

	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}
