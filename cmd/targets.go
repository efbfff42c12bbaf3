package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"proxyload/internal/targets"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Download a top-sites list and write it as a target file",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closer, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		src := viper.GetString("targets-source")
		out := viper.GetString("targets-out")
		client := &http.Client{Timeout: 2 * time.Minute}

		log.WithField("source", src).Info("downloading domain list")
		n, err := targets.Generate(ctx, client, src, viper.GetInt("target-count"), out)
		if err != nil {
			return fmt.Errorf("generate targets: %w", err)
		}
		log.WithFields(logrus.Fields{"count": n, "out": out}).Info("targets written")
		return nil
	},
}

func init() {
	f := targetsCmd.Flags()
	f.IntP("count", "n", targets.DefaultCount, "Number of domains to keep (env TARGET_COUNT)")
	f.StringP("out", "o", targets.DefaultOutput, "Output file")
	f.String("source", targets.DefaultSourceURL, "CSV source URL")

	viper.BindPFlag("target-count", f.Lookup("count"))
	viper.BindPFlag("targets-out", f.Lookup("out"))
	viper.BindPFlag("targets-source", f.Lookup("source"))
}
