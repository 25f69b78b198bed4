package commands

import (
	"github.com/latoulicious/rpsync/pkg/profile"
	"github.com/latoulicious/rpsync/pkg/savedvars"
	"github.com/urfave/cli/v2"
)

// showCmd creates the show command
func showCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a profile in its structured form",
		ArgsUsage: "<profile-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "cloud", Usage: "Show the cloud copy instead of the local one"},
		},
		Action: func(c *cli.Context) error {
			id, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			if !c.Bool("cloud") {
				locals, err := env.scan(env.commandLogger("show"), []string{id})
				if err != nil {
					return outputError(err)
				}
				return env.outputJSON(locals[0].Profile)
			}

			cp, err := env.gateway().GetProfile(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			raw, err := savedvars.ParseRecord(cp.RawLua)
			if err != nil {
				return outputError(err)
			}
			return env.outputJSON(profile.MapProfile(raw, cp.ID))
		},
	}
}

// versionsCmd creates the versions command
func versionsCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "versions",
		Usage:     "List the stored history of a cloud profile, newest first",
		ArgsUsage: "<profile-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "payload", Usage: "Include the stored record of each version"},
		},
		Action: func(c *cli.Context) error {
			id, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}
			versions, err := env.gateway().GetVersions(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			if !c.Bool("payload") {
				for i := range versions {
					versions[i].RawLua = ""
				}
			}
			return env.outputJSON(versions)
		},
	}
}

// rollbackCmd creates the rollback command
func rollbackCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "rollback",
		Usage:     "Make an earlier version the current cloud copy",
		ArgsUsage: "<profile-id> <version>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "restore", Usage: "Also write the rolled back copy into the local file"},
		},
		Action: func(c *cli.Context) error {
			id, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}
			version, err := versionArg(c, 1)
			if err != nil {
				return outputError(err)
			}

			logger := env.commandLogger("rollback")
			cp, err := env.gateway().Rollback(c.Context, id, version)
			if err != nil {
				logger.Error("Rollback failed", err, map[string]interface{}{
					"profile_id": id,
					"version":    version,
				})
				return outputError(err)
			}
			logger.Info("Profile rolled back", map[string]interface{}{
				"profile_id":  id,
				"to_version":  version,
				"new_version": cp.Version,
			})

			if c.Bool("restore") {
				if err := env.restore(c, id, 0); err != nil {
					return outputError(err)
				}
			}

			cp.RawLua = ""
			return env.outputJSON(cp)
		},
	}
}

// deleteCmd creates the delete command
func deleteCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a profile and its history from the cloud; the local copy is kept",
		ArgsUsage: "<profile-id>",
		Action: func(c *cli.Context) error {
			id, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}

			logger := env.commandLogger("delete")
			if err := env.gateway().DeleteProfile(c.Context, id); err != nil {
				logger.Error("Delete failed", err, map[string]interface{}{"profile_id": id})
				return outputError(err)
			}

			// without a baseline the next upload treats the local copy as new
			meta, err := env.syncMeta()
			if err != nil {
				return outputError(err)
			}
			if err := meta.Delete(c.Context, id); err != nil {
				return outputError(err)
			}

			logger.Info("Profile deleted from cloud", map[string]interface{}{"profile_id": id})
			return env.outputJSON(deleteResult{ID: id, Deleted: true})
		},
	}
}

type deleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// restoreCmd creates the restore command
func restoreCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write a cloud copy of a profile into the local file",
		ArgsUsage: "<profile-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "version", Usage: "Restore this stored version instead of the current copy"},
		},
		Action: func(c *cli.Context) error {
			id, err := profileArg(c)
			if err != nil {
				return outputError(err)
			}
			if err := env.restore(c, id, c.Int("version")); err != nil {
				return outputError(err)
			}

			locals, err := env.scan(env.commandLogger("restore"), []string{id})
			if err != nil {
				return outputError(err)
			}
			return env.outputJSON(locals[0].Profile)
		},
	}
}

func (e *Env) restore(c *cli.Context, id string, version int) error {
	path, err := e.locate(c.Context, id)
	if err != nil {
		return err
	}
	rec, err := e.reconciler()
	if err != nil {
		return err
	}
	_, err = rec.Restore(c.Context, path, id, version)
	return err
}
