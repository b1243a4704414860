// Package cmd defines and implements the CLI commands for the rulecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/server"
)

type crawlOptions struct {
	seeds       []string
	idleTimeout time.Duration
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the configured spider until the crawl goes idle",
		Long: `Builds the engine from the configuration file, seeds it with the spider's
start URLs (or the --seed overrides) and blocks until no work has been
observed for the idle timeout, or the process is interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.seeds, "seed", nil, "seed URL, replaces spider.start_urls (repeatable)")
	cmd.Flags().DurationVar(&opts.idleTimeout, "idle-timeout", 0, "override scheduler.idle_timeout_seconds")
	return cmd
}

func runCrawl(ctx context.Context, opts *crawlOptions) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}

	var buildOpts []server.Option
	if len(opts.seeds) > 0 {
		buildOpts = append(buildOpts, server.WithSeeds(opts.seeds...))
	}
	if opts.idleTimeout > 0 {
		buildOpts = append(buildOpts, server.WithIdleTimeout(opts.idleTimeout))
	}

	app, err := server.Build(ctx, rt.cfg, rt.logger, buildOpts...)
	if err != nil {
		return fmt.Errorf("build crawler: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := app.Close(closeCtx); cerr != nil {
			rt.logger.Warn("Failed to close crawler", zap.Error(cerr))
		}
	}()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}

	state := app.State()
	rt.logger.Info("Crawl finished",
		zap.Uint64("parsed", state.Parsed),
		zap.Uint64("records", state.Records),
		zap.Uint64("record_errors", state.RecordErrors),
	)
	return nil
}
