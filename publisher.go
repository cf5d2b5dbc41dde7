package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrMissingCredentials   = errors.New("missing credentials")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPostFailed           = errors.New("post failed")
	ErrInvalidPost          = errors.New("invalid post")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Publisher logs in and creates exactly one post. Every failure is final;
// nothing is retried.
type Publisher struct {
	client Client
	logger *zap.Logger
}

func NewPublisher(client Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish runs the three stages in order: credential check, login, post.
// A failed stage stops the run before the next one starts.
func (p *Publisher) Publish(ctx context.Context, creds Credentials, post Post) (*PostResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}

	sess, err := p.client.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: no session returned", ErrAuthenticationFailed)
	}
	p.logger.Info("logged in", zap.String("did", sess.DID))

	res, err := p.client.Post(ctx, sess, post)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPostFailed, err)
	}
	if res == nil || res.URI == "" {
		return nil, fmt.Errorf("%w: no post identifier returned", ErrPostFailed)
	}

	p.logger.Info("posted",
		zap.String("uri", res.URI),
		zap.String("url", res.WebURL()),
		zap.Int("images", len(post.Images)),
	)
	return res, nil
}
