package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/supervaani/internal/devserver"
	"github.com/hrygo/supervaani/internal/logging"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory backend for local development",
	RunE: func(_ *cobra.Command, _ []string) error {
		logger := logging.New(viper.GetString("mode"), viper.GetString("log-level"), nil)
		srv := devserver.New(devserver.Options{Logger: logger})

		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			errc <- srv.Start(viper.GetString("dev-addr"))
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	devserverCmd.Flags().String("dev-addr", ":8088", "listen address of the devserver")
	if err := viper.BindPFlag("dev-addr", devserverCmd.Flags().Lookup("dev-addr")); err != nil {
		panic(err)
	}
}
