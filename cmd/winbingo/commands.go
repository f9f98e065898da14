package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/winbingo/core/bootstrap"
	"github.com/m3rciful/winbingo/core/buildinfo"
	corecmd "github.com/m3rciful/winbingo/core/cmd"
	"github.com/m3rciful/winbingo/internal/app"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (falls back to $"+configEnvVar+")")
	rootCmd.AddCommand(runCmd, migrateCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "winbingo",
	Short:         "Win Bingo wallet bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve Telegram updates, the mini app API and the scheduler",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := bootstrap.Migrate(bootstrap.Options{Config: cfg.CoreConfig(), Database: cfg.Database}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
	},
}

func runBot(_ *cobra.Command, _ []string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*app.Config))
		},
	})
}

func loadConfig() (*app.Config, error) {
	path, err := corecmd.ResolveConfigPath(configPath, configEnvVar, defaultConfigPath)
	if err != nil {
		return nil, err
	}
	return app.Load(path)
}
