// Command gradebook is the local-first command line gradebook. All state lives
// in a single SQLite file; the optional sync commands replicate it through a
// gradebook-syncd server.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MarcoPoloResearchLab/gradebook/internal/app"
	"github.com/MarcoPoloResearchLab/gradebook/internal/config"
	"github.com/MarcoPoloResearchLab/gradebook/internal/logging"
	"github.com/MarcoPoloResearchLab/gradebook/internal/store"
)

var cfgFile string

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gradebook",
		Short:         "Homeschool grade tracking",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newStudentCommand(),
		newSubjectCommand(),
		newAssignmentCommand(),
		newSchoolCommand(),
		newYearCommand(),
		newTermCommand(),
		newBackfillCommand(),
		newReportCommand(),
		newTrendCommand(),
		newExportCommand(),
		newImportCommand(),
		newSeedCommand(),
		newResetCommand(),
		newSyncCommand(),
	)

	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("sync-url", defaults.GetString("sync.url"), "Sync server base URL")
	cmd.PersistentFlags().String("sync-account", defaults.GetString("sync.account"), "Sync account identifier")

	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "sync.url", "sync-url")
	bindFlag(cmd, "sync.account", "sync-account")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// cliApp bundles the running service with everything that needs closing when
// the command finishes.
type cliApp struct {
	service *app.Service
	config  config.CLIConfig
	close   func()
}

func openApp(ctx context.Context) (*cliApp, error) {
	appConfig, err := config.LoadCLI(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	documentStore, err := store.NewDocumentStore(store.DocumentStoreConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	service, err := app.NewService(ctx, app.ServiceConfig{
		Store:  documentStore,
		Logger: logger,
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &cliApp{
		service: service,
		config:  appConfig,
		close: func() {
			service.DisableSync()
			sqlDB.Close()
			logger.Sync() //nolint:errcheck
		},
	}, nil
}

// runWithApp wraps a command body with app setup and teardown.
func runWithApp(run func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cli, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cli.close()
		return run(cmd.Context(), cli, cmd, args)
	}
}
