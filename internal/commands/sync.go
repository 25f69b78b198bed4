package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latoulicious/rpsync/internal/reconcile"
	"github.com/latoulicious/rpsync/pkg/conflict"
	"github.com/latoulicious/rpsync/pkg/syncer"
	"github.com/urfave/cli/v2"
)

// uploadCmd creates the upload command
func uploadCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"sync"},
		Usage:     "Upload changed local profiles and report conflicts",
		ArgsUsage: "[profile-id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "resolve", Aliases: []string{"r"}, Usage: "Settle conflicts by keeping one side: local|cloud"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print progress"},
		},
		Action: func(c *cli.Context) error {
			var resolution conflict.Resolution
			if r := c.String("resolve"); r != "" {
				parsed, err := conflict.ParseResolution(r)
				if err != nil {
					return outputError(err)
				}
				resolution = parsed
			}

			var onProgress syncer.ProgressFunc
			if !c.Bool("quiet") {
				onProgress = env.printProgress
			}

			report, err := env.sync(c.Context, "upload", c.Args().Slice(), resolution, onProgress)
			if err != nil {
				return outputError(err)
			}
			if err := env.outputJSON(report); err != nil {
				return err
			}
			return reportExit(report)
		},
	}
}

// statusCmd creates the status command
func statusCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show what the next upload would do, without changing anything",
		ArgsUsage: "[profile-id...]",
		Action: func(c *cli.Context) error {
			locals, err := env.scan(env.commandLogger("status"), c.Args().Slice())
			if err != nil {
				return outputError(err)
			}
			rec, err := env.reconciler()
			if err != nil {
				return outputError(err)
			}
			plan, err := rec.Plan(c.Context, locals)
			if err != nil {
				return outputError(err)
			}

			rows := make([]statusRow, 0, len(plan.Items))
			for _, it := range plan.Items {
				rows = append(rows, newStatusRow(it))
			}
			return env.outputJSON(rows)
		},
	}
}

type statusRow struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Status          conflict.Status  `json:"status"`
	Action          reconcile.Action `json:"action"`
	LocalChecksum   string           `json:"localChecksum"`
	LocalModifiedAt time.Time        `json:"localModifiedAt"`
	CloudChecksum   string           `json:"cloudChecksum,omitempty"`
	CloudVersion    int              `json:"cloudVersion,omitempty"`
}

func newStatusRow(it reconcile.Item) statusRow {
	row := statusRow{
		ID:              it.Local.Data.ID,
		Name:            it.Local.Data.ProfileName,
		Status:          it.Status,
		Action:          it.Action,
		LocalChecksum:   it.Local.Data.Checksum,
		LocalModifiedAt: it.Local.ModifiedAt,
	}
	if it.Cloud != nil {
		row.CloudChecksum = it.Cloud.Checksum
		row.CloudVersion = it.Cloud.Version
	}
	return row
}

// sync scans, plans and runs one reconciliation
func (e *Env) sync(ctx context.Context, command string, ids []string, resolution conflict.Resolution, onProgress syncer.ProgressFunc) (reconcile.Report, error) {
	logger := e.commandLogger(command)

	locals, err := e.scan(logger, ids)
	if err != nil {
		return reconcile.Report{}, err
	}
	rec, err := e.reconciler()
	if err != nil {
		return reconcile.Report{}, err
	}

	plan, err := rec.Plan(ctx, locals)
	if err != nil {
		return reconcile.Report{}, err
	}
	report, err := rec.Run(ctx, plan, resolution, onProgress)
	if err != nil {
		logger.Error("Sync run failed", err, nil)
		return report, err
	}

	logger.Info("Sync run completed", map[string]interface{}{
		"profiles":    len(locals),
		"uploaded":    len(report.Uploaded),
		"pulled":      len(report.Pulled),
		"skipped":     len(report.Skipped),
		"cloud_newer": len(report.CloudNewer),
		"failed":      len(report.Failed),
		"conflicts":   len(report.Conflicts),
		"resolution":  string(resolution),
		"batch_id":    report.BatchID,
	})
	return report, nil
}

func (e *Env) printProgress(p syncer.Progress) {
	fmt.Fprintf(e.Err, "[%d/%d] %s\n", p.Completed, p.Total, p.Current)
}

// reportExit maps an incomplete run onto a non-zero exit code
func reportExit(r reconcile.Report) error {
	if len(r.Failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d profile(s) failed to upload: %s",
			len(r.Failed), strings.Join(r.Failed, ", ")), ExitPartialFailure)
	}
	if len(r.Conflicts) > 0 {
		return cli.Exit(fmt.Sprintf("%d conflict(s) left unresolved; rerun with --resolve local or --resolve cloud",
			len(r.Conflicts)), ExitConflicts)
	}
	return nil
}
