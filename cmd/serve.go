package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courseforge/courseforge/internal/api"
	"github.com/courseforge/courseforge/internal/auth"
	"github.com/courseforge/courseforge/internal/keys"
	"github.com/courseforge/courseforge/internal/prompt"
	"github.com/courseforge/courseforge/internal/quality"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CourseForge API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cipher, err := keys.NewCipher([]byte(cfg.Keys.EncryptionKey))
		if err != nil {
			return err
		}

		server := api.NewServer(api.Deps{
			Store:     env.Store,
			Auth:      auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL(), env.Store),
			Cipher:    cipher,
			Scorer:    env.Scorer,
			Stats:     env.Stats,
			Prompts:   prompt.New(prompt.VariantAdvanced),
			Validator: quality.NewValidator(),
			Clients:   env.Clients,
		}, api.Config{
			FrontendURL:       cfg.Server.FrontendURL,
			DevMode:           cfg.Server.DevMode,
			BcryptCost:        cfg.Auth.BcryptCost,
			KeyTestTimeout:    time.Duration(cfg.Keys.TestTimeoutSecs) * time.Second,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		// Periodic session sweep
		go sweepSessions(ctx, env)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// sweepSessions deletes expired sessions hourly until ctx is done.
func sweepSessions(ctx context.Context, env *runtimeEnv) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := env.Store.DeleteExpiredSessions(ctx)
			if err != nil {
				zap.L().Warn("session sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				zap.L().Info("expired sessions removed", zap.Int("count", deleted))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
