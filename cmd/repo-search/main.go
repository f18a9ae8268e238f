// Command repo-search runs a GitHub repository search and writes the full
// name of every match, one per line, to a file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/repo-search/internal/exporter"
	"github.com/Sternrassler/repo-search/pkg/config"
	"github.com/Sternrassler/repo-search/pkg/logging"
)

// version is set via -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd(os.LookupEnv, os.Stdout, os.Stderr).ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "repo-search:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitError
	}
}

func newRootCmd(lookup config.LookupFunc, stdout, stderr io.Writer) *cobra.Command {
	cfg, envErr := config.FromEnv(lookup)

	cmd := &cobra.Command{
		Use:   "repo-search",
		Short: "Export GitHub repository search results to a file",
		Long: `repo-search pages through the GitHub repository search API and writes the
full name (owner/name) of every matching repository to a file, one per line.

Required settings can come from flags or the environment:
  SEARCH_STR   search query, e.g. "language:go stars:>1000"
  GH_TOKEN     GitHub token
  FILE_PATH    output file

The file is written only after every page was fetched successfully.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.LogLevel),
				Pretty: cfg.LogPretty,
				Output: stderr,
			})
			logger := logging.NewLogger(logging.ComponentCLI)
			logger.Debug().Str("version", version).Stringer("config", cfg).Msg("Configuration loaded")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := exporter.Run(cmd.Context(), cfg, exporter.Options{})
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "wrote %d repositories to %s (%d pages", len(res.Names), cfg.FilePath, res.Pages)
			if res.Truncated {
				fmt.Fprintf(stdout, ", stopped at page limit of %d, %d reported", cfg.MaxPages, res.Total)
			}
			fmt.Fprintln(stdout, ")")
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&cfg.SearchStr, "query", "q", cfg.SearchStr, "search query ($"+config.EnvSearchStr+")")
	f.StringVar(&cfg.Token, "token", cfg.Token, "GitHub token ($"+config.EnvToken+")")
	f.StringVarP(&cfg.FilePath, "output", "o", cfg.FilePath, "output file ($"+config.EnvFilePath+")")
	f.IntVar(&cfg.PerPage, "per-page", cfg.PerPage, "results per page, 1-100")
	f.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "stop after this many pages and write what was fetched (0 = all pages)")
	f.IntVar(&cfg.Limit, "limit", cfg.Limit, "stop after this many results (0 = all)")
	f.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "API base URL")
	f.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for the page cache (empty disables)")
	f.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "page cache TTL")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	f.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this textfile")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.BoolVar(&cfg.LogPretty, "pretty", cfg.LogPretty, "human-readable log output")

	return cmd
}
