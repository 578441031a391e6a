package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/handler"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/config"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/requestlog"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/telemetry"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/validation"
	"github.com/tilsley/mdcombine/pkg/logging"
	"github.com/tilsley/mdcombine/schemas"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(build appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the listMdFiles, downloadCombined and preview endpoints under
/api/files. The server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			a, err := build(cmd, log)
			if err != nil {
				return err
			}
			defer a.Close()

			// --- Observability ---

			// Instruments created while wiring delegate to the providers
			// registered here.
			tel, err := telemetry.New(cmd.Context(), telemetry.Options{
				Enabled: a.cfg.OTelEnabled,
				Version: buildVersion(),
			})
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(ctx); err != nil {
					log.Error("telemetry shutdown failed", "error", err)
				}
			}()

			// --- HTTP ---

			router, err := newRouter(a.cfg, a.svc, log)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), &http.Server{
				Addr:              ":" + a.cfg.Server.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}, log)
		},
	}
}

func newRouter(cfg *config.Config, svc *combine.Service, log *slog.Logger) (*gin.Engine, error) {
	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestlog.Middleware(log),
		cors.New(corsConfig(cfg.Server.CORSOrigins)),
		otelgin.Middleware("mdcombine"),
		validator,
	)
	handler.RegisterRoutes(router, svc, log)
	return router, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestlog.Header},
		ExposeHeaders: []string{"Content-Disposition", requestlog.Header},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting mdcombine", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
