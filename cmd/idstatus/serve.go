package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "idstatus/internal/http"
	"idstatus/internal/identity/handler"
	jwttoken "idstatus/internal/jwt_token"
	"idstatus/internal/platform/httpserver"
	"idstatus/internal/platform/metrics"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the identity status query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.logger
	if cfg.Auth.JWTSigningKey == "" {
		return errors.New("auth signing key is required to serve the query API")
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	checks := map[string]httpapi.HealthCheck{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		jwttoken.WithRequiredScope(jwttoken.ScopeIdentitiesRead),
		jwttoken.WithLeeway(30*time.Second),
	)
	router := httpapi.NewRouter(httpapi.Deps{
		Identities: handler.New(a.store, log),
		Validator:  jwttoken.NewMiddlewareValidator(jwtService),
		Logger:     log,
		Metrics:    metrics.New(),
		Checks:     checks,
	})
	log.InfoContext(ctx, "starting idstatus API", "addr", cfg.Server.Addr)
	return httpserver.New(cfg.Server, router, log).Run(ctx)
}
