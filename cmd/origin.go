package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"proxyload/internal/origin"
)

var originCmd = &cobra.Command{
	Use:   "origin",
	Short: "Run a local origin server for smoke runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closer, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closer.Close()

		port, _ := cmd.Flags().GetInt("port")
		srv := origin.Start(origin.ServerConfig{Port: port}, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	originCmd.Flags().IntP("port", "p", 8080, "Port to run the origin server on")
}
