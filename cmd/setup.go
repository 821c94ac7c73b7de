package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/fixity/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("Edit %s and set fedora.base_url before running an audit\n", configPath)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = r.defaults()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = r.defaults()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = r.defaults()
			}
		}
	}

	if db := cmd.String("db"); db != "" {
		config.Database.Path = db
	}
	if config.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty (set it in %s or pass --db)", shared.ErrInvalidConfig, configPath)
	}

	if cmd.Bool("rollback") {
		return r.rollbackDatabase(config.Database.Path)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := r.openRunStore(config)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// rollbackDatabase reverts the most recent migration of the run store at path.
func (r *Runner) rollbackDatabase(path string) error {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back database: %w", err)
	}
	r.logger.Info("rolled back latest migration", "path", path)
	return nil
}

func (r *Runner) defaults() *shared.Config {
	config := *r.config
	return &config
}
