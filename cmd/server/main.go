package main // Entry point package

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/config"
	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/utils"
)

// rootCmd is the class-booking binary; serve is the default mode.
var rootCmd = &cobra.Command{
	Use:   "class-booking [command]",
	Short: "Class session scheduling, capacity and booking service",
	Long: `class-booking runs the booking API and its maintenance tasks.

Examples:
  # Run the HTTP API (and, if enabled, the order consumer)
  class-booking serve

  # Apply pending schema migrations
  class-booking migrate

  # Expand recurring templates into dated sessions
  class-booking expand-templates -f schedule.yaml

  # Mint an operator token
  class-booking token --sub alice --caps edit,delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newExpandCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newHashKeyCmd())
}

func main() {
	rootCmd.SilenceErrors = true // printed below
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what every command needs: configuration, a logger and an
// open, migrated database.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	db      *sql.DB
	dialect database.Dialect
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	log, err := utils.NewLogger(cfg.IsProduction())
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// openApp loads config, connects to the database and, when migrate is
// set, brings the schema up to date.
func openApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, dialect, err := database.Open(database.Options{
		Driver:     cfg.DB.Driver,
		User:       cfg.DB.User,
		Pass:       cfg.DB.Pass,
		Host:       cfg.DB.Host,
		Port:       cfg.DB.Port,
		Name:       cfg.DB.Name,
		SQLitePath: cfg.DB.SQLitePath,
	})
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	if migrate {
		v, err := database.Migrate(ctx, db, dialect)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema ready", zap.String("driver", dialect.Name()), zap.Int("version", v))
	}
	return &app{cfg: cfg, log: log, db: db, dialect: dialect}, nil
}

func (a *app) close() {
	_ = a.db.Close()
	_ = a.log.Sync()
}
