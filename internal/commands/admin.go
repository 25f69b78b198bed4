package commands

import (
	"errors"
	"fmt"

	"github.com/latoulicious/rpsync/internal/version"
	"github.com/latoulicious/rpsync/pkg/database/migration"
	"github.com/latoulicious/rpsync/pkg/database/models"
	"github.com/latoulicious/rpsync/pkg/database/repository"
	"github.com/urfave/cli/v2"
)

// migrateCmd creates the migrate command
func migrateCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the server database schema",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "Drop every rpsync table first"},
		},
		Action: func(c *cli.Context) error {
			db, err := env.database()
			if err != nil {
				return outputError(err)
			}
			logger := env.logger("migration")

			if c.Bool("reset") {
				if err := migration.Reset(db, logger); err != nil {
					return outputError(err)
				}
			}
			if err := migration.RunMigration(db, logger); err != nil {
				return outputError(err)
			}
			fmt.Fprintln(env.Out, "Migrations completed successfully")
			return nil
		},
	}
}

// logsCmd creates the logs command
func logsCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Show persisted sync log entries for a profile or a batch",
		ArgsUsage: "[profile-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "batch", Usage: "Show every entry of one upload batch"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50, Usage: "Maximum entries for a profile"},
		},
		Action: func(c *cli.Context) error {
			batch := c.String("batch")
			if batch == "" && c.NArg() == 0 {
				return outputError(errors.New("a profile id or --batch is required"))
			}

			db, err := env.database()
			if err != nil {
				return outputError(err)
			}
			repo := repository.NewSyncLogRepository(db)

			var entries []models.SyncLog
			if batch != "" {
				entries, err = repo.ForBatch(c.Context, batch)
			} else {
				entries, err = repo.RecentForProfile(c.Context, c.Args().First(), c.Int("limit"))
			}
			if err != nil {
				return outputError(err)
			}
			return env.outputJSON(entries)
		},
	}
}

// versionCmd creates the version command
func versionCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
		},
		Action: func(c *cli.Context) error {
			info := version.Get()
			if c.Bool("json") {
				return env.outputJSON(info)
			}
			fmt.Fprintln(env.Out, info.String())
			return nil
		},
	}
}
