package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string
	// Stdout mirrors file output to stdout when File is set.
	Stdout bool
	// Quiet drops console output entirely, used while the dashboard owns the terminal.
	Quiet bool
}

// New builds the run logger. The returned closer releases the log file, if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	if opts.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	levelStr := opts.Level
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info\n", levelStr)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	var console io.Writer = os.Stdout
	if opts.Quiet {
		console = io.Discard
	}

	if opts.File == "" {
		log.SetOutput(console)
		return log, nopCloser{}, nil
	}

	f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	if opts.Stdout && !opts.Quiet {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(f)
	}
	return log, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
