package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute запускает административную утилиту
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd собирает дерево команд. Путь к конфигу общий для всех подкоманд.
func NewRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	var configPath string
	cmd := &cobra.Command{
		Use:           "microlearn-admin",
		Short:         "Administrative tasks for the microlearn API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewTokenCmd(&configPath))
	cmd.AddCommand(NewPoolStatsCmd(&configPath))
	return cmd
}
