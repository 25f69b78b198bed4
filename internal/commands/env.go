package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/latoulicious/rpsync/internal/reconcile"
	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/config"
	"github.com/latoulicious/rpsync/pkg/database"
	"github.com/latoulicious/rpsync/pkg/database/repository"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/latoulicious/rpsync/pkg/savedvars"
	"github.com/latoulicious/rpsync/pkg/syncer"
	"github.com/latoulicious/rpsync/pkg/syncmeta"
	"gorm.io/gorm"
)

// Env is what the commands of one invocation share. Out and Err default to
// stdout and stderr; a preset Gateway replaces the HTTP client
type Env struct {
	Out     io.Writer
	Err     io.Writer
	Gateway cloud.Gateway

	config *config.ConfigManager
	meta   *syncmeta.Store
	db     *gorm.DB
}

// NewEnv creates an Env writing to stdout and stderr
func NewEnv() *Env {
	return &Env{Out: os.Stdout, Err: os.Stderr}
}

// load reads the configuration and installs the logger factory
func (e *Env) load(dir string) error {
	cm, err := config.NewConfigManager(dir)
	if err != nil {
		return err
	}
	e.config = cm

	loggers, err := e.newLoggerFactory()
	if err != nil {
		return err
	}
	logging.SetGlobalLoggerFactory(loggers)
	return nil
}

func (e *Env) newLoggerFactory() (logging.LoggerFactory, error) {
	lc := e.config.GetLoggerConfig()
	opts := logging.Options{Level: lc.Level, Format: lc.Format}
	if lc.File != "" {
		opts.File = &logging.FileOptions{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   true,
		}
	}

	if !lc.SaveToDB {
		return logging.NewLoggerFactory(opts), nil
	}
	db, err := e.database()
	if err != nil {
		return nil, fmt.Errorf("logger save_to_db: %w", err)
	}
	return logging.NewDatabaseLoggerFactory(opts, repository.NewSyncLogRepository(db)), nil
}

func (e *Env) logger(component string) logging.Logger {
	return logging.GetGlobalLoggerFactory().CreateLogger(component)
}

func (e *Env) commandLogger(command string) *logging.CommandLogger {
	return logging.GetGlobalLoggerFactory().CreateCommandLogger(command)
}

func (e *Env) database() (*gorm.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	url := e.config.GetDatabaseConfig().URL
	if url == "" {
		return nil, errors.New("database url is not configured (set RPSYNC_DATABASE_URL)")
	}
	db, err := database.NewGormDB(url)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

func (e *Env) gateway() cloud.Gateway {
	if e.Gateway == nil {
		gc := e.config.GetGatewayConfig()
		e.Gateway = cloud.NewHTTPClient(gc.BaseURL, gc.Token, gc.Timeout, e.logger("gateway"))
	}
	return e.Gateway
}

func (e *Env) syncMeta() (*syncmeta.Store, error) {
	if e.meta != nil {
		return e.meta, nil
	}
	meta, err := syncmeta.Open(e.config.GetSyncMetaConfig().Path)
	if err != nil {
		return nil, err
	}
	e.meta = meta
	return meta, nil
}

// accounts resolves the addon files of every account to sync
func (e *Env) accounts() ([]config.AccountFile, error) {
	return e.config.GetAddonConfig().SavedVariablesFiles()
}

// scan reads the local profiles of every account, keeping only ids when any
// are given. An id seen in more than one account is taken from the first
func (e *Env) scan(logger *logging.CommandLogger, ids []string) ([]savedvars.LocalProfile, error) {
	files, err := e.accounts()
	if err != nil {
		return nil, err
	}

	var locals []savedvars.LocalProfile
	seen := map[string]string{}
	for _, f := range files {
		found, err := savedvars.ScanFile(f.Path, f.AccountID)
		if err != nil {
			return nil, err
		}

		accountLogger := logger.WithAccount(f.AccountID)
		accountLogger.Debug("Scanned SavedVariables", map[string]interface{}{
			"path":     f.Path,
			"profiles": len(found),
		})
		for _, l := range found {
			if first, dup := seen[l.Data.ID]; dup {
				accountLogger.Warn("Profile id already seen in another account, skipping", map[string]interface{}{
					"profile_id":    l.Data.ID,
					"first_account": first,
				})
				continue
			}
			seen[l.Data.ID] = f.AccountID
			locals = append(locals, l)
		}
	}
	if len(ids) == 0 {
		return locals, nil
	}

	byID := make(map[string]savedvars.LocalProfile, len(locals))
	for _, l := range locals {
		byID[l.Data.ID] = l
	}
	picked := make([]savedvars.LocalProfile, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: no local profile %q", cloud.ErrNotFound, id)
		}
		picked = append(picked, l)
	}
	return picked, nil
}

// locate picks the file a cloud profile is restored into: the one already
// holding it, else the file of the account it was uploaded from, else the
// only configured file
func (e *Env) locate(ctx context.Context, id string) (string, error) {
	files, err := e.accounts()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if _, err := savedvars.FindProfile(f.Path, f.AccountID, id); err == nil {
			return f.Path, nil
		} else if !errors.Is(err, cloud.ErrNotFound) {
			return "", err
		}
	}
	if len(files) == 1 {
		return files[0].Path, nil
	}

	cp, err := e.gateway().GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.AccountID == cp.AccountID {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("profile %s belongs to account %q, which has no SavedVariables file here; set addon account_id", id, cp.AccountID)
}

func (e *Env) reconciler() (*reconcile.Reconciler, error) {
	meta, err := e.syncMeta()
	if err != nil {
		return nil, err
	}
	sc := e.config.GetSyncConfig()
	gw := e.gateway()
	uploader := syncer.NewService(gw, syncer.Config{
		MaxAttempts: sc.MaxAttempts,
		BaseDelay:   sc.BaseDelay,
		Concurrency: sc.Concurrency,
	}, e.logger("sync"))
	return reconcile.New(gw, meta, uploader, e.logger("reconcile")), nil
}

// close releases whatever the command opened
func (e *Env) close() error {
	var errs []error
	if e.meta != nil {
		errs = append(errs, e.meta.Close())
		e.meta = nil
	}
	if e.db != nil {
		errs = append(errs, database.Close(e.db))
		e.db = nil
	}
	return errors.Join(errs...)
}
