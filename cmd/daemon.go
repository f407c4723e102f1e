package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reins-ai/reins/internal/config"
	"github.com/reins-ai/reins/internal/container"
	"github.com/reins-ai/reins/internal/cron"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the reins memory daemon",
	RunE:  runDaemon,
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	fmt.Printf("%s Starting reins daemon...\n", logo)

	if err := c.StatusFile().MarkStarted(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write status file: %v\n", err)
	}

	channelMgr := c.ChannelManager()
	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Warning: no channels enabled")
	}

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	handle, err := cron.RegisterMemoryJobs(gctx, c.ConsolidationJob(), c.BriefingJob(), c.Store().Ready)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	defer handle.StopAll()

	g.Go(func() error { return channelMgr.StartAll(gctx) })

	fmt.Printf("%s Daemon running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "daemon error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
