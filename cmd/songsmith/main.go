package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/quillrook/songsmith/internal/config"
	"github.com/quillrook/songsmith/internal/database"
	"github.com/quillrook/songsmith/internal/version"
)

func main() {
	root := &cli.Command{
		Name:    "songsmith",
		Usage:   "AI songwriting workshop: artist profiles, prompt crafting, and a generation ledger",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("SS_CONFIG_PATH"),
				Value:   "/data/config.yaml",
			},
		},
		// Running without a subcommand starts the server.
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: runServe,
			},
			exportCommand(),
			importCommand(),
			{
				Name:   "reset-credentials",
				Usage:  "Wipe all accounts, sessions, and stored generation credentials",
				Action: runResetCredentials,
			},
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the root --config flag.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
