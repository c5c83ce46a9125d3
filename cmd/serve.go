package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/config"
	"github.com/abhisek/codetutor/internal/study"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lesson chat panel over a websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		slog.SetDefault(config.NewLogger(os.Stderr, true, verbose))

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = rt.Config.ServeAddr
		}
		origins, _ := cmd.Flags().GetStringSlice("origin")

		if _, err := loadSession(cmd, rt); err != nil {
			var inc *study.InconsistentStateError
			if !errors.As(err, &inc) {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := rt.WebServer(ctx)
		if err != nil {
			return err
		}
		srv.OriginPatterns = origins

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		rt.Register("web host", func() error {
			cancel()
			return nil
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from CODETUTOR_ADDR or 127.0.0.1:7878)")
	serveCmd.Flags().StringSlice("origin", nil, "Extra allowed websocket origins, e.g. localhost:5173")
}
