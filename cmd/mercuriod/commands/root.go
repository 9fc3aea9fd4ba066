// Package commands implements the mercuriod CLI: flag parsing, config
// loading/validation, and the broker's signal-driven supervision loop
// (SIGTERM/SIGINT for graceful shutdown, SIGHUP to re-read the config
// file and apply its logging settings; auth settings are not reloaded).
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/frenzox/mercurio/config"
	"github.com/frenzox/mercurio/internal/goroutine"
	"github.com/frenzox/mercurio/internal/server"
	"github.com/frenzox/mercurio/internal/xlog"
)

// Exit codes, per the CLI's contract: 0 normal shutdown, 1 config
// error, 2 bind failure, 3 internal fatal.
const (
	exitOK = iota
	exitConfigError
	exitBindFailure
	exitFatal
)

var (
	configPath string
	listenAddr string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "mercuriod",
	Short:         "Mercurio MQTT broker",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to mercurio.toml (default ~/.mercurio/mercurio.toml)")
	rootCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "override server.host:server.port")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if ee, ok := err.(*exitError); ok {
			fmt.Fprintln(os.Stderr, "mercuriod:", ee.err)
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "mercuriod:", err)
		return exitFatal
	}
	return exitOK
}

// exitError carries the specific exit code a failure maps to, since
// cobra's RunE only gives us an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func fail(code int, format string, args ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(exitConfigError, "load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fail(exitConfigError, "%w", err)
	}

	if err := initLogging(cfg); err != nil {
		return fail(exitConfigError, "init logging: %w", err)
	}
	log := xlog.LoggerModule("cmd")

	if err := goroutine.Init(0); err != nil {
		return fail(exitFatal, "init worker pool: %w", err)
	}
	defer goroutine.Release()

	opts := []server.Option{server.WithConfig(cfg)}
	if listenAddr != "" {
		opts = append(opts, server.WithListen(listenAddr))
	}
	srv, err := server.NewServer(opts...)
	if err != nil {
		return fail(exitFatal, "build server: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ServeTCP() }()

	for {
		select {
		case err := <-serveErr:
			if err != nil {
				return fail(exitBindFailure, "serve: %w", err)
			}
			return nil

		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Info("reloading configuration")
				reloaded, err := loadConfig()
				if err != nil {
					log.Warn("config reload failed, keeping current settings", zap.Error(err))
					continue
				}
				if err := initLogging(reloaded); err != nil {
					log.Warn("logging reload failed", zap.Error(err))
				}
				continue
			}

			log.Info("shutting down", zap.String("signal", s.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			stopErr := srv.Stop(ctx)
			cancel()
			if stopErr != nil {
				return fail(exitFatal, "shutdown: %w", stopErr)
			}
			return nil
		}
	}
}

func initLogging(cfg *config.Config) error {
	return xlog.Init(xlog.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
}

// loadConfig resolves the config file (explicit -c, else
// ~/.mercurio/mercurio.toml), overlaying it onto config.Default() with
// viper. A missing default-location file is not an error; an explicitly
// named one must exist.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()

	path := configPath
	explicit := path != ""
	if !explicit {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".mercurio", "mercurio.toml")
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}
