// Package cmd defines and implements the CLI commands for the jobfeed executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/app"
	"github.com/JakeFAU/council-jobs-feed/internal/config"
	"github.com/JakeFAU/council-jobs-feed/internal/logging"
)

// sessionKeyType is the key for storing the session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session carries what every subcommand needs once flags are parsed.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

// Runner is the part of the application the scrape command drives.
// Tests inject a fake through newRunner.
type Runner interface {
	Run(ctx context.Context) (app.Summary, error)
	Close()
}

// newRunner is the application factory. It's a variable so tests can
// replace it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "jobfeed",
		Short: "Scrapes council careers sites into a single RSS feed.",
		Long: `jobfeed visits every council listed in the site table, extracts the
advertised vacancies using that council's selectors, and merges the new ones
into a persistent RSS feed. Running it twice publishes nothing twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config is resolved once here so subcommands see flags, env and file
		// merged in the same order.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v := config.New()
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
				MaxBackups:  cfg.Logging.MaxBackups,
				MaxAgeDays:  cfg.Logging.MaxAgeDays,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, err := resolveSession(cmd.Context()); err == nil {
				_ = s.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("sites", "", "site table CSV (overrides sites.path)")
	flags.String("feed", "", "feed object path (overrides feed.path)")
	flags.Int("concurrency", 0, "sites scraped in parallel (overrides crawler.concurrency)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newSitesCmd())
	return cmd
}

// flagKeys maps persistent flags onto config keys. Unset flags fall through
// to env, file and defaults.
var flagKeys = map[string]string{
	"sites":       "sites.path",
	"feed":        "feed.path",
	"concurrency": "crawler.concurrency",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func resolveSession(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok || s == nil {
		return nil, errors.New("configuration not initialized")
	}
	return s, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run; the feed
// is still written with whatever was scraped.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jobfeed: %v\n", err)
		stop()
		os.Exit(1)
	}
}
