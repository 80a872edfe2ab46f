// Package cli implements the gophshare operator commands on top of cobra.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophshare/internal/server/app"
	"github.com/dmitrijs2005/gophshare/internal/server/config"
	"github.com/spf13/cobra"
)

// newApp is a seam for tests.
var newApp = app.New

type cli struct {
	cfg    *config.Config
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree. Infrastructure flags are
// persistent and shared by every subcommand.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{cfg: &config.Config{}, stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}
	c.cfg.LoadDefaults()

	root := &cobra.Command{
		Use:   "gophshare",
		Short: "Zero-knowledge file sharing",
		Long: `gophshare encrypts files before they are stored and hands out share links.

Depending on the key mode the decryption key travels in the link fragment,
is derived from a password only the recipient knows, or is kept by the
server (embedded mode, not zero-knowledge).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.cfg.Resolve(cmd.Root().PersistentFlags())
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	c.cfg.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		c.migrateCommand(),
		c.uploadCommand(),
		c.accessCommand(),
		c.downloadCommand(),
		c.thumbnailCommand(),
		c.sweepCommand(),
	)
	return root
}

// withApp runs fn with a fully wired App and closes it afterwards.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp(ctx, c.cfg, c.stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn(ctx, "close failed", "error", err)
		}
	}()
	return fn(ctx, a)
}

// Execute runs the command tree with a context cancelled on SIGINT or
// SIGTERM and returns the process exit code.
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}
