package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const appName = "proust-bluesky-images"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)
	if err := cmd.Run(ctx, args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for problems the operator can fix locally and 1 for
// failures of a remote stage.
func exitCode(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidPost),
		errors.Is(err, ErrInvalidConfig):
		return 2
	default:
		return 1
	}
}

// usageError replaces the library's "Incorrect Usage" output so that a bad
// flag is reported on one line by run, like every other local error.
func usageError(ctx context.Context, cmd *cli.Command, err error, isSubcommand bool) error {
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	defaults := DefaultSquareOptions()

	return &cli.Command{
		Name:         appName,
		Usage:        "Post to Bluesky using credentials from the environment",
		Writer:       stdout,
		ErrWriter:    stderr,
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Usage:   "Bluesky handle to log in with",
				Sources: cli.EnvVars(envUsername, "BLUESKY_HANDLE"),
			},
			&cli.StringFlag{
				Name:    "app-password",
				Usage:   "Bluesky app password (not the account password)",
				Sources: cli.EnvVars(envAppPassword),
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "PDS to log in to",
				Value:   defaultHost,
				Sources: cli.EnvVars("BLUESKY_HOST"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "timeout for each request to the PDS",
				Value:   defaultTimeout,
				Sources: cli.EnvVars("BLUESKY_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "text",
				Usage:   "post this text instead of the archive message",
				Sources: cli.EnvVars("POST_TEXT"),
			},
			&cli.StringFlag{
				Name:    "draft",
				Usage:   "markdown file holding the post, with optional langs/images frontmatter",
				Sources: cli.EnvVars("POST_DRAFT"),
			},
			&cli.StringSliceFlag{
				Name:  "image",
				Usage: "attach an image (up to 4)",
			},
			&cli.StringSliceFlag{
				Name:  "alt",
				Usage: "alt text for the image at the same position",
			},
			&cli.StringSliceFlag{
				Name:    "lang",
				Usage:   "language of the post, e.g. fr",
				Sources: cli.EnvVars("POST_LANGS"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Value:   false,
				Usage:   "Dry run. Checks credentials and builds the post, doesn't post",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Value:   false,
				Usage:   "debug logging on stderr",
				Sources: cli.EnvVars("VERBOSE"),
			},
		},
		Action: publish,
		Commands: []*cli.Command{
			{
				Name:         "square",
				Usage:        "Make a square JPEG with a blurred background from an image URL or file",
				ArgsUsage:    "<url|file> [output.jpg]",
				OnUsageError: usageError,
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "source",
					},
					&cli.StringArg{
						Name:  "output",
						Value: "output.jpg",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "size",
						Usage: "width and height of the output",
						Value: defaults.Size,
					},
					&cli.IntFlag{
						Name:  "quality",
						Usage: "JPEG quality",
						Value: defaults.Quality,
					},
				},
				Action: square,
			},
		},
	}
}

func square(ctx context.Context, cmd *cli.Command) error {
	src := cmd.StringArg("source")
	if src == "" {
		return fmt.Errorf("%w: no image url or file given", ErrInvalidConfig)
	}
	out := cmd.StringArg("output")
	if out == "" {
		out = "output.jpg"
	}

	logger := newLogger(cmd.Root().ErrWriter, cmd.Bool("verbose"))
	defer func() { _ = logger.Sync() }()

	opts := DefaultSquareOptions()
	opts.Size = cmd.Int("size")
	opts.Quality = cmd.Int("quality")

	sg, err := newSquareGenerator(&http.Client{Timeout: cmd.Duration("timeout")}, opts, logger)
	if err != nil {
		return err
	}
	if err := sg.Generate(ctx, src, out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, out)
	return nil
}
