package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/hrygo/supervaani/chat"
	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/identity"
	"github.com/hrygo/supervaani/internal/logging"
	"github.com/hrygo/supervaani/internal/profile"
	"github.com/hrygo/supervaani/internal/version"
	"github.com/hrygo/supervaani/metrics"
	"github.com/hrygo/supervaani/session"
	"github.com/hrygo/supervaani/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with SuperVaani from the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		logger := logging.New(p.Mode, p.LogLevel, nil)
		exporter := metrics.New(metrics.DefaultConfig())

		gw, err := gateway.NewHTTPGateway(gateway.Config{
			BaseURL:   p.BaseURL,
			Timeout:   p.Timeout,
			RateLimit: p.RateLimit,
			UserAgent: version.UserAgent(),
			Identity:  newIdentity(p, logger),
			Metrics:   exporter,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		client := chat.NewClient(gw, store.New(), chat.Options{
			Logger:   logger,
			Metrics:  exporter,
			PageSize: p.PageSize,
		})
		manager := session.NewManager(client, gw, logger)

		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()

		if p.MetricsAddr != "" {
			srv := serveMetrics(p.MetricsAddr, exporter, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		if p.IsAuthenticated() {
			manager.SetStatus(session.StatusAuthenticated)
		} else {
			logger.Warn("no identity configured, conversations will not be loaded")
			manager.SetStatus(session.StatusUnauthenticated)
		}

		r := newREPL(client, cmd.OutOrStdout())
		err = r.run(ctx, os.Stdin)

		manager.Close()
		manager.Wait()
		return err
	},
}

func newIdentity(p *profile.Profile, logger *slog.Logger) identity.Provider {
	if p.AccessToken != "" {
		return identity.NewOAuth2Provider(identity.StaticToken(p.AccessToken), p.UserInfoURL, logger)
	}
	if p.IDToken != "" {
		var keyFunc jwt.Keyfunc
		if p.IDTokenSecret != "" {
			keyFunc = identity.HMACKey([]byte(p.IDTokenSecret))
		}
		return identity.NewIDTokenProvider(p.IDToken, keyFunc, logger)
	}
	return identity.Static(p.Email)
}

func serveMetrics(addr string, exporter *metrics.Exporter, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
