package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"proxyload/internal/banner"
	"proxyload/internal/cli"
	"proxyload/internal/logging"
	"proxyload/internal/proxy"
	"proxyload/internal/runner"
	"proxyload/internal/stats"
	"proxyload/internal/tui/live"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "proxyload",
	Short: "ProxyLoad - constant arrival rate load through a forward proxy",
	Long: `
ProxyLoad drives synthetic HTTP traffic against a fleet of target origins
through a forward proxy, mixing long-lived keep-alive requests with
short-lived connection-close requests.

It supports two output modes:
1. Headless (Default): structured log lines and an end-of-run summary
2. Dashboard (--tui): live terminal view of the same run`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if viper.GetBool("tui") {
			return runTUI(cfg)
		}
		return runHeadless(cfg)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(originCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.proxyload.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().Bool("log-stdout", false, "Mirror file logs to stdout")

	def := runner.DefaultConfig()
	f := rootCmd.Flags()
	f.StringP("targets", "t", def.TargetsFile, "Target list file (.json array or one URL per line)")
	f.IntP("rate", "r", def.Rate, "Iterations started per second")
	f.DurationP("duration", "d", def.Duration, "Admission window")
	f.Int("pre-allocated", def.PreAllocated, "Workers started before the first arrival")
	f.Int("max-workers", def.MaxWorkers, "Worker ceiling; arrivals beyond it are dropped")
	f.Duration("graceful-stop", def.GracefulStop, "Drain window for in-flight iterations")
	f.Float64("long-lived-ratio", def.Policy.LongLivedRatio, "Fraction of iterations using long-lived connections")
	f.Duration("long-timeout", def.Policy.LongTimeout, "Request timeout for long-lived iterations")
	f.Duration("short-timeout", def.Policy.ShortTimeout, "Request timeout for short-lived iterations")
	f.Duration("long-pacing", def.Policy.LongPacing, "Pause after each long-lived iteration")
	f.Duration("short-pacing", def.Policy.ShortPacing, "Pause after each short-lived iteration")
	f.Int("log-every", def.LogEvery, "Log every Nth iteration")
	f.Int("run-avg-every", def.RunAvgEvery, "Log the running average every N completions")
	f.String("http-proxy", "", "Proxy for http targets (env HTTP_PROXY)")
	f.String("https-proxy", "", "Proxy for https targets (env HTTPS_PROXY)")
	f.String("fallback-proxy", proxy.DefaultFallback, "Proxy used when none is configured")
	f.Int64("seed", 0, "Random seed (0 = time based)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Bool("tui", false, "Show the live dashboard")

	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".proxyload")
		}
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// Proxy variables are commonly exported in lower case as well.
	viper.BindEnv("http-proxy", "HTTP_PROXY", "http_proxy")
	viper.BindEnv("https-proxy", "HTTPS_PROXY", "https_proxy")
	viper.ReadInConfig()
}

func configFromViper() runner.Config {
	cfg := runner.DefaultConfig()
	cfg.TargetsFile = viper.GetString("targets")
	cfg.Rate = viper.GetInt("rate")
	cfg.Duration = viper.GetDuration("duration")
	cfg.PreAllocated = viper.GetInt("pre-allocated")
	cfg.MaxWorkers = viper.GetInt("max-workers")
	cfg.GracefulStop = viper.GetDuration("graceful-stop")
	cfg.Policy.LongLivedRatio = viper.GetFloat64("long-lived-ratio")
	cfg.Policy.LongTimeout = viper.GetDuration("long-timeout")
	cfg.Policy.ShortTimeout = viper.GetDuration("short-timeout")
	cfg.Policy.LongPacing = viper.GetDuration("long-pacing")
	cfg.Policy.ShortPacing = viper.GetDuration("short-pacing")
	cfg.LogEvery = viper.GetInt("log-every")
	cfg.RunAvgEvery = viper.GetInt("run-avg-every")
	cfg.HTTPProxy = viper.GetString("http-proxy")
	cfg.HTTPSProxy = viper.GetString("https-proxy")
	cfg.FallbackProxy = viper.GetString("fallback-proxy")
	cfg.Seed = viper.GetInt64("seed")
	cfg.MetricsAddr = viper.GetString("metrics-addr")
	return cfg
}

func newLogger(quiet bool) (*logrus.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:  viper.GetString("log-level"),
		Format: viper.GetString("log-format"),
		File:   viper.GetString("log-file"),
		Stdout: viper.GetBool("log-stdout"),
		Quiet:  quiet,
	})
}

// --- Runners ---

func runHeadless(cfg runner.Config) error {
	log, closer, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closer.Close()

	return cli.Start(cfg, log)
}

func runTUI(cfg runner.Config) error {
	// The dashboard owns the terminal; logs only reach --log-file.
	log, closer, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess, err := cli.Prepare(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := live.NewModel(cfg.Duration, sess.Updates, stop)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan stats.Summary, 1)
	go func() {
		done <- sess.Run(ctx)
		// The terminal snapshot may have been dropped on a full channel.
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		stop()
		<-done
		return fmt.Errorf("dashboard: %w", err)
	}

	sum := <-done
	cli.PrintHeader(os.Stdout, sess)
	cli.PrintSummary(os.Stdout, sum)
	return nil
}
