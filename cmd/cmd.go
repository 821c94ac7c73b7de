// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "db",
		Usage: "SQLite database path (overrides database.path)",
	}
}

// auditFlags are shared by validate and repair.
func auditFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:  "url",
			Usage: "Repository base URL (overrides fedora.base_url)",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Aliases: []string{"n"},
			Usage:   "Number of concurrent workers (overrides audit.concurrency)",
		},
		&cli.IntFlag{
			Name:  "max",
			Usage: "Stop after queueing this many objects",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read object pids from a file, one per line (- for stdin)",
		},
		&cli.StringFlag{
			Name:  "content-model",
			Usage: "Only discover objects with this content model (overrides audit.content_model)",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Record the run in this SQLite database (overrides database.path)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress per-datastream messages",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// validateCommand checks stored checksums.
func validateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"audit"},
		Usage:     "Check datastream checksums and report invalid or missing ones",
		ArgsUsage: "[pid...]",
		Flags: append(auditFlags(),
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Write problem datastreams to a CSV file",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include valid checksums in the CSV output",
			},
			&cli.BoolFlag{
				Name:  "all-versions",
				Usage: "Check every stored version of each datastream",
			},
			&cli.BoolFlag{
				Name:  "missing-only",
				Usage: "Only report datastreams without a checksum",
			},
		),
		Action: r.Validate,
	}
}

// repairCommand adds checksums where they are missing.
func repairCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "repair",
		Usage:     "Add checksums to datastreams that do not have one",
		ArgsUsage: "[pid...]",
		Flags: append(auditFlags(),
			&cli.StringFlag{
				Name:  "checksum-type",
				Usage: "Checksum algorithm to set (overrides audit.checksum_type)",
			},
			&cli.StringSliceFlag{
				Name:  "force",
				Usage: "Datastream id to re-save even if it has a checksum (repeatable)",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Log message stored with each modification (overrides audit.log_message)",
			},
		),
		Action: r.Repair,
	}
}

// runsCommand inspects the run store.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.RunsList,
			},
			{
				Name:      "show",
				Usage:     "Show one recorded run with its stored result counts",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.RunsShow,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the run store and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					dbFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead of applying pending ones",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
