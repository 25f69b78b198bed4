package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/database/migration"
	"github.com/latoulicious/rpsync/pkg/database/repository"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/urfave/cli/v2"
)

// serveCmd creates the serve command
func serveCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the profile REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
			&cli.BoolFlag{Name: "memory", Usage: "Keep profiles in memory instead of PostgreSQL"},
			&cli.BoolFlag{Name: "migrate", Usage: "Run database migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			sc := env.config.GetServerConfig()
			addr := sc.Addr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}
			logger := env.logger("server")

			store, backend, err := env.profileStore(c.Bool("memory"), c.Bool("migrate"))
			if err != nil {
				return outputError(err)
			}

			srv := &http.Server{
				Addr:         addr,
				Handler:      newServerMux(store, sc.Token, backend, logger),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				logger.Info("Profile server listening", map[string]interface{}{
					"addr":    addr,
					"backend": backend,
					"auth":    sc.Token != "",
				})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return outputError(err)
				}
			}

			logger.Info("Shutting down gracefully", nil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", err, nil)
				return outputError(err)
			}
			logger.Info("Server shutdown complete", nil)
			return nil
		},
	}
}

// profileStore picks the backend behind the REST API
func (e *Env) profileStore(memory, migrate bool) (cloud.Gateway, string, error) {
	sc := e.config.GetServerConfig()
	maxVersions := e.config.GetDatabaseConfig().MaxVersions

	if memory {
		return cloud.NewMemoryGateway(sc.UserID, maxVersions), "memory", nil
	}

	db, err := e.database()
	if err != nil {
		return nil, "", errors.Join(err, errors.New("use --memory to serve without a database"))
	}
	if migrate {
		if err := migration.RunMigration(db, e.logger("migration")); err != nil {
			return nil, "", err
		}
	}
	return repository.NewProfileRepository(db, sc.UserID, maxVersions), "postgres", nil
}

type healthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Uptime    string `json:"uptime"`
	StartTime string `json:"start_time"`
}

// newServerMux mounts the profile API under /api next to a health endpoint
func newServerMux(store cloud.Gateway, token, backend string, logger logging.Logger) http.Handler {
	start := time.Now()

	mux := http.NewServeMux()
	mux.Handle(cloud.APIPrefix+"/", cloud.NewHandler(store, token, logger))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "healthy", http.StatusOK
		if _, err := store.ListProfiles(r.Context()); err != nil {
			logger.Warn("Health check failed", map[string]interface{}{"error": err.Error()})
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:    status,
			Backend:   backend,
			Uptime:    time.Since(start).Round(time.Second).String(),
			StartTime: start.Format(time.RFC3339),
		})
	})
	return mux
}
