// Package commands is the rpsync command line
package commands

import (
	"github.com/latoulicious/rpsync/internal/version"
	"github.com/latoulicious/rpsync/pkg/config"
	"github.com/urfave/cli/v2"
)

// Exit codes besides 1 for plain errors
const (
	ExitPartialFailure = 2
	ExitConflicts      = 3
)

// NewApp creates the CLI application with all commands
func NewApp(env *Env) *cli.App {
	app := &cli.App{
		Name:    "rpsync",
		Usage:   "Sync role-play profiles between the addon and the cloud",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultDir,
				EnvVars: []string{"RPSYNC_CONFIG_DIR"},
				Usage:   "Directory holding rpsync.yaml or rpsync.toml",
			},
		},
		Before: func(c *cli.Context) error {
			if err := env.load(c.String("config")); err != nil {
				return outputError(err)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return env.close()
		},
		Commands: []*cli.Command{
			uploadCmd(env),
			statusCmd(env),
			showCmd(env),
			versionsCmd(env),
			rollbackCmd(env),
			restoreCmd(env),
			deleteCmd(env),
			watchCmd(env),
			serveCmd(env),
			migrateCmd(env),
			logsCmd(env),
			versionCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}
