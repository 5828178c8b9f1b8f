package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"groundtruth/internal/app"
	appstore "groundtruth/internal/app/store"
	"groundtruth/internal/identity"
	"groundtruth/internal/platform/httpserver"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		addr string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the built-in demo application",
		Long: `Serve starts the small order-management application the harness is
developed against: RPC procedures under /api/rpc, HTML login and customer
pages, and a per-IP login rate limit. The schema is applied on boot and
--seed creates the roster identities as application users.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config()
			log := root.logger(cfg, cmd.ErrOrStderr())
			ctx := cmd.Context()

			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = db.PingContext(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping database: %w", err)
			}
			if _, err := db.ExecContext(ctx, appstore.Schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}

			secret := os.Getenv("GROUNDTRUTH_APP_SECRET")
			if secret == "" {
				secret = "dev-secret"
				log.Warn("GROUNDTRUTH_APP_SECRET not set, signing tokens with the development secret")
			}

			a, err := app.New(app.Config{JWTSecret: secret}, appstore.NewPostgres(db), log)
			if err != nil {
				return err
			}

			if seed {
				roster, err := identity.Load(cfg.IdentitiesFile)
				if err != nil {
					return err
				}
				var users []app.SeedUser
				for _, role := range roster.Roles() {
					ident, err := roster.Get(role)
					if err != nil {
						return err
					}
					users = append(users, app.SeedUser{
						Name:     ident.Role,
						Email:    ident.Email,
						Password: ident.Password,
						Role:     ident.Role,
					})
				}
				if err := a.SeedUsers(ctx, users); err != nil {
					return err
				}
				log.Info("seeded roster identities", "count", len(users))
			}

			srv := httpserver.New(addr, a.Handler())
			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			log.Info("application listening", "addr", addr)

			notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			select {
			case err := <-errCh:
				return err
			case <-notifyCtx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			log.Info("application stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed roster identities as application users")
	return cmd
}
