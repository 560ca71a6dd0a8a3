package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/stkolmagorov/marketplace/internal/config"
	"github.com/stkolmagorov/marketplace/pkg/logger"
	"github.com/stkolmagorov/marketplace/pkg/logger/slogx"
)

var cmd = &cobra.Command{
	Use:  "marketplace",
	Long: `Escrow-based marketplace settlement engine`,
}

func init() {
	var configFile string

	// Add global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		config := config.Parse(configFile)

		if err := logger.Init(config.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", config.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	cmd.AddCommand(
		NewVersionCommand(),
		NewRunCommand(),
		NewMigrateCommand(),
		NewGenerateKeypairCommand(),
	)

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute root command")
	}
}
