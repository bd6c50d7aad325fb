// Package cli implements the tarjama command line.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harunnryd/tarjama/pkg/relay"
	"github.com/harunnryd/tarjama/pkg/runner"
	"github.com/harunnryd/tarjama/pkg/store"
)

// Dependencies is filled by the root command before any subcommand runs.
type Dependencies struct {
	Viper    *viper.Viper
	Registry *relay.ProviderRegistry
	Config   relay.Config
	Logger   *slog.Logger
}

func (d *Dependencies) OpenStore(ctx context.Context) (store.Admin, error) {
	return d.Registry.BuildStore(ctx, d.Config)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "tarjama",
		Short:         "Live Arabic sermon transcription and translation relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := relay.LoadConfig(deps.Viper, configPath)
			if err != nil {
				return err
			}
			deps.Config = cfg
			deps.Logger = relay.NewLogger(cfg)
			return nil
		},
	}
	rootCmd.Version = runner.Version

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	_ = deps.Viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(NewLanguagesCmd(deps))
	rootCmd.AddCommand(NewReplayCmd(deps))
	rootCmd.AddCommand(NewLoggingCmd(deps))
	rootCmd.AddCommand(NewTranscriptsCmd(deps))

	return rootCmd
}
