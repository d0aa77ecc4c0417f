package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"legato/internal/coverart"
	"legato/internal/metadata"
	"legato/internal/player"
	"legato/internal/queue"
	"legato/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Load the library, import the inbox and serve the HTTP API until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	playerState := player.NewStateManager(logger)
	q := queue.New(queue.VirtualFactory,
		queue.WithLogger(logger),
		queue.WithObserver(playerState.Publish),
		queue.WithLoop(cfg.Queue.Loop),
		queue.WithShuffleOnEnqueue(cfg.Queue.ShuffleOnEnqueue),
	)

	var art *coverart.Client
	if cfg.CoverArt.Enabled {
		cooldown, err := cfg.CoverArtCooldown()
		if err != nil {
			return err
		}
		art = coverart.NewClient(coverart.Options{
			BaseURL:    cfg.CoverArt.BaseURL,
			ArchiveURL: cfg.CoverArt.ArchiveURL,
			UserAgent:  cfg.CoverArt.UserAgent,
			Cooldown:   cooldown,
			Timeout:    cfg.CoverArtTimeout(),
		}, logger)
		defer art.Close()
	}

	musicServer, err := server.NewMusicServer(cfg, server.Dependencies{
		Library:   a.library,
		Database:  a.db,
		Payloads:  a.payloads,
		Extractor: metadata.NewExtractor(cfg.Inbox.SupportedFormats, logger),
		Queue:     q,
		Player:    playerState,
		CoverArt:  art,
	}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- musicServer.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := musicServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
		return err
	}
	logger.WithFields(logrus.Fields{"songs": a.library.Len()}).Info("Goodbye")
	return nil
}
