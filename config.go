package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

const (
	envUsername    = "BLUESKY_USERNAME"
	envAppPassword = "BLUESKY_APP_PASSWORD"

	defaultHost    = "https://bsky.social"
	defaultTimeout = 30 * time.Second

	// Posted when neither --text nor --draft is given.
	defaultPostText = "New pictures have been added to the Proust image archive."
)

// Credentials are read once at startup and never logged or persisted.
type Credentials struct {
	Handle      string
	AppPassword string
}

// Validate reports every missing credential by its environment variable.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Handle) == "" {
		missing = append(missing, envUsername)
	}
	if strings.TrimSpace(c.AppPassword) == "" {
		missing = append(missing, envAppPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return nil
}

func (c Credentials) String() string {
	return "Credentials{redacted}"
}

func (c Credentials) GoString() string {
	return c.String()
}

type Config struct {
	Credentials Credentials
	Host        string
	Timeout     time.Duration

	Text   string
	Draft  string
	Images []string
	Alts   []string
	Langs  []string

	DryRun  bool
	Verbose bool
}

// LoadConfig collects the resolved flag values of the root command. Flags
// fall back to their environment sources, so this is the only place the
// environment reaches the program.
func LoadConfig(cmd *cli.Command) (Config, error) {
	cfg := Config{
		Credentials: Credentials{
			Handle:      strings.TrimSpace(cmd.String("username")),
			AppPassword: strings.TrimSpace(cmd.String("app-password")),
		},
		Host:    strings.TrimRight(strings.TrimSpace(cmd.String("host")), "/"),
		Timeout: cmd.Duration("timeout"),
		Text:    cmd.String("text"),
		Draft:   strings.TrimSpace(cmd.String("draft")),
		Images:  cmd.StringSlice("image"),
		Alts:    cmd.StringSlice("alt"),
		Langs:   cmd.StringSlice("lang"),
		DryRun:  cmd.Bool("dry-run"),
		Verbose: cmd.Bool("verbose"),
	}

	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	u, err := url.Parse(cfg.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, fmt.Errorf("%w: host must be an http(s) URL: %q", ErrInvalidConfig, cfg.Host)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Text != "" && cfg.Draft != "" {
		return cfg, fmt.Errorf("%w: --text and --draft are mutually exclusive", ErrInvalidConfig)
	}
	if len(cfg.Alts) > len(cfg.Images) {
		return cfg, fmt.Errorf("%w: %d alt texts given for %d images", ErrInvalidConfig, len(cfg.Alts), len(cfg.Images))
	}
	return cfg, nil
}
