package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// publish is the root action: build the config once, check the credentials
// and the post locally, then hand both to the Publisher.
func publish(ctx context.Context, cmd *cli.Command) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.Root().ErrWriter, cfg.Verbose)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Credentials.Validate(); err != nil {
		return err
	}

	post, err := BuildPost(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		logger.Warn("dry run, post not submitted",
			zap.String("host", cfg.Host),
			zap.String("text", post.Text),
			zap.Strings("langs", post.Langs),
			zap.Int("images", len(post.Images)),
		)
		return nil
	}

	client := NewBlueskyClient(cfg.Host, cfg.Timeout, logger)
	res, err := NewPublisher(client, logger).Publish(ctx, cfg.Credentials, post)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, res.URI)
	return nil
}
