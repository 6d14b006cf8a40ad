package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/albumdrop/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the development receiver until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := r.config.Receiver.Host
	if v := cmd.String("host"); v != "" {
		host = v
	}
	port := r.config.Receiver.Port
	if v := cmd.Int("port"); v != 0 {
		port = int(v)
	}
	dir := r.config.Receiver.StorageDir
	if v := cmd.String("dir"); v != "" {
		dir = v
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	router := server.NewReceiverRouter(server.ReceiverOpts{
		StorageDir: dir,
		CoverPath:  r.config.Server.CoverPath,
		AudioPath:  r.config.Server.AudioPath,
		Token:      r.config.Receiver.Token,
		MaxBody:    r.config.ReceiverMaxBody(),
		Logger:     r.logger,
	})
	for _, pattern := range router.Patterns() {
		r.logger.Debug("route registered", "pattern", pattern)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", host, port)
	r.logger.Info("storing uploads", "dir", dir)
	return server.Serve(ctx, addr, router, r.logger)
}
