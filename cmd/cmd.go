// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func albumFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cover",
			Usage: "Cover image uploaded before any track (required)",
		},
		&cli.StringSliceFlag{
			Name:    "track",
			Aliases: []string{"t"},
			Usage:   "Audio file to upload, in order (repeatable; positional arguments are appended)",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Bearer token (overrides credentials.token and ALBUMDROP_TOKEN)",
		},
	}
}

// uploadCommand runs one album batch with progress bars
func uploadCommand(r *Runner) *cli.Command {
	flags := append(albumFlags(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Summary format (text, json, csv, markdown)",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:  "no-record",
			Usage: "Do not store the batch in the history database",
		},
	)
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"up"},
		Usage:     "Upload a cover and its tracks",
		ArgsUsage: "[track...]",
		Flags:     flags,
		Action:    r.Upload,
	}
}

// tuiCommand returns the top-level TUI command for an interactive upload.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Upload an album with an interactive progress view",
		ArgsUsage: "[track...]",
		Flags:     albumFlags(),
		Action:    r.TUI,
	}
}

// serveCommand runs the development receiver
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a local server that accepts album uploads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default receiver.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default receiver.port)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Storage directory (default receiver.storage_dir)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand inspects recorded batches
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded upload batches",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent batches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of batches to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only batches with this status (completed, failed, cancelled)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output one JSON object per batch",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one batch with its items",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Batch ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, json, csv, markdown)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a batch from the history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Batch ID",
						Required: true,
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the newest applied migration instead of migrating up",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// statusCommand checks the upload server
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Check the upload server (calls /health)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}
