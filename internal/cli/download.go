package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/server/app"
	"github.com/dmitrijs2005/gophshare/internal/server/keydist"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
	"github.com/spf13/cobra"
)

// target is what a user passes to access, download or thumbnail: a share
// link, a bare short id, or (download only) a file id.
type target struct {
	shortID  string
	fragment string
	fileID   string
}

func parseTarget(arg string, allowFileID bool) (target, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, common.SharePathPrefix) {
		shortID, frag, err := keydist.ParseShareLink(arg)
		if err != nil {
			return target{}, err
		}
		return target{shortID: shortID, fragment: frag}, nil
	}
	if allowFileID && strings.HasPrefix(arg, "file:") {
		return target{fileID: strings.TrimPrefix(arg, "file:")}, nil
	}
	if err := keydist.ValidateAlias(arg); err != nil {
		return target{}, fmt.Errorf("%q is neither a share link nor a short id: %w", arg, err)
	}
	return target{shortID: arg}, nil
}

type credentialOptions struct {
	password       bool
	accessPassword bool
}

func (o *credentialOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.password, "password", "p", false, "prompt for the key password")
	cmd.Flags().BoolVar(&o.accessPassword, "access-password", false, "prompt for the access password")
}

// credentials collects what mode needs: the fragment key, or a prompted key
// password for password-mode files.
func (c *cli) credentials(t target, mode models.KeyMode, o credentialOptions) (services.Credentials, error) {
	creds := services.Credentials{}
	if t.fragment != "" && t.fragment != keydist.PasswordFragment {
		creds.FragmentKey = t.fragment
	}
	if o.password || mode == models.ModePasswordDerived || t.fragment == keydist.PasswordFragment {
		pw, err := promptPassword(c.stdin, c.stderr, "Key password")
		if err != nil {
			return creds, err
		}
		creds.Password = pw
	}
	if o.accessPassword {
		pw, err := promptPassword(c.stdin, c.stderr, "Access password")
		if err != nil {
			return creds, err
		}
		creds.AccessPassword = pw
	}
	return creds, nil
}

func (c *cli) downloadCommand() *cobra.Command {
	var (
		creds  credentialOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "download <share-link|short-id|file:<id>>",
		Short: "Download and decrypt a shared file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0], true)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := c.download(ctx, a, t, creds)
				if err != nil {
					return err
				}
				defer common.WipeByteArray(d.Content)

				path := outputPath(output, d.FileName)
				if err := os.WriteFile(path, d.Content, 0o600); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, successText.Sprint("✓")+" saved "+highlightText.Sprint(path))
				printField(c.stdout, "size", len(d.Content))
				printField(c.stdout, "downloads", d.DownloadCount)
				return nil
			})
		},
	}
	creds.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; defaults to the original name")
	return cmd
}

// download opens the share first when t is a link or short id, so the
// access gate is checked once and the grant carries it to the download.
func (c *cli) download(ctx context.Context, a *app.App, t target, o credentialOptions) (*services.Download, error) {
	if t.fileID != "" {
		file, err := a.Repos.Files(a.DB).GetByID(ctx, t.fileID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrFileNotFound, t.fileID)
		}
		creds, err := c.credentials(t, file.KeyMode, o)
		if err != nil {
			return nil, err
		}
		return a.Files.DownloadFile(ctx, t.fileID, creds)
	}

	var accessPassword string
	if o.accessPassword {
		pw, err := promptPassword(c.stdin, c.stderr, "Access password")
		if err != nil {
			return nil, err
		}
		accessPassword = pw
		o.accessPassword = false
	}
	access, err := a.Files.AccessShare(ctx, t.shortID, accessPassword)
	if err != nil {
		return nil, err
	}
	creds, err := c.credentials(t, access.KeyMode, o)
	if err != nil {
		return nil, err
	}
	creds.Grant = access.Grant

	s := startSpinner(c.stderr, "Downloading and decrypting...")
	defer s.Stop()
	return a.Files.DownloadFile(ctx, access.FileID, creds)
}

// outputPath never lets a stored file name escape the working directory.
func outputPath(flag, original string) string {
	if flag != "" {
		return flag
	}
	name := filepath.Base(filepath.Clean("/" + original))
	if name == "/" || name == "." || name == "" {
		return "download.bin"
	}
	return name
}

func (c *cli) accessCommand() *cobra.Command {
	var creds credentialOptions
	cmd := &cobra.Command{
		Use:   "access <share-link|short-id>",
		Short: "Open a share link and show its public metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0], false)
			if err != nil {
				return err
			}
			var accessPassword string
			if creds.accessPassword {
				if accessPassword, err = promptPassword(c.stdin, c.stderr, "Access password"); err != nil {
					return err
				}
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				access, err := a.Files.AccessShare(ctx, t.shortID, accessPassword)
				if err != nil {
					return err
				}
				printShareAccess(c, access)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&creds.accessPassword, "access-password", false, "prompt for the access password")
	return cmd
}

func printShareAccess(c *cli, s *services.ShareAccess) {
	fmt.Fprintln(c.stdout, successText.Sprint("✓")+" share "+highlightText.Sprint(s.ShortID))
	printField(c.stdout, "file id", s.FileID)
	printField(c.stdout, "mode", s.KeyMode)
	printField(c.stdout, "content", s.Metadata.ContentCategory)
	printField(c.stdout, "size", s.Size)
	printField(c.stdout, "accesses", s.AccessCount)
	printField(c.stdout, "expires", s.ExpiresAt.Format("2006-01-02 15:04 MST"))
	if s.NeedsPassword {
		printField(c.stdout, "key", "password required")
	}
	printField(c.stdout, "grant", s.Grant)
}

func (c *cli) thumbnailCommand() *cobra.Command {
	var (
		creds  credentialOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "thumbnail <share-link|short-id>",
		Short: "Write a JPEG thumbnail of a shared image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0], false)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cr, err := c.credentials(t, "", creds)
				if err != nil {
					return err
				}
				th, err := a.Thumbnails.Get(ctx, t.shortID, cr)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, th.Data, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%s wrote %dx%d thumbnail to %s\n",
					successText.Sprint("✓"), th.Meta.Width, th.Meta.Height, highlightText.Sprint(output))
				return nil
			})
		},
	}
	creds.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "thumbnail.jpg", "output file")
	return cmd
}
