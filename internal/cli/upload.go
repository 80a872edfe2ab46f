package cli

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophshare/internal/server/app"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
	"github.com/spf13/cobra"
)

type uploadOptions struct {
	password       bool
	accessPassword bool
	mode           string
	mimeType       string
	expiresHours   int
	maxDownloads   int64
	maxAccess      int64
	alias          string
}

func (c *cli) uploadCommand() *cobra.Command {
	var o uploadOptions
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Encrypt a file and create a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := c.buildUploadRequest(args[0], o)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s := startSpinner(c.stderr, "Encrypting and uploading...")
				res, err := a.Files.UploadFile(ctx, req)
				s.Stop()
				if err != nil {
					return err
				}
				printUploadResult(c, res)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&o.password, "password", "p", false, "prompt for a key password (password mode)")
	f.BoolVar(&o.accessPassword, "access-password", false, "prompt for a server-side access password")
	f.StringVar(&o.mode, "mode", "", "key mode: url-fragment, password-protected or embedded")
	f.StringVar(&o.mimeType, "mime", "", "MIME type; detected from the file when empty")
	f.IntVar(&o.expiresHours, "expires-hours", 0, "lifetime in hours; 0 uses the server default")
	f.Int64Var(&o.maxDownloads, "max-downloads", 0, "download limit; 0 is unlimited")
	f.Int64Var(&o.maxAccess, "max-access", 0, "share link access limit; 0 is unlimited")
	f.StringVar(&o.alias, "alias", "", "custom short id")
	return cmd
}

func (c *cli) buildUploadRequest(path string, o uploadOptions) (services.UploadRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return services.UploadRequest{}, err
	}

	req := services.UploadRequest{
		Content:         data,
		OriginalName:    filepath.Base(path),
		MimeType:        o.mimeType,
		ExpirationHours: o.expiresHours,
		Alias:           o.alias,
	}
	if req.MimeType == "" {
		req.MimeType = detectMimeType(path, data)
	}
	if o.mode != "" {
		mode, err := models.ParseKeyMode(o.mode)
		if err != nil {
			return services.UploadRequest{}, err
		}
		req.Mode = mode
	}
	if o.maxDownloads > 0 {
		req.MaxDownloads = &o.maxDownloads
	}
	if o.maxAccess > 0 {
		req.MaxAccess = &o.maxAccess
	}

	if o.password || req.Mode == models.ModePasswordDerived {
		if req.Password, err = promptPassword(c.stdin, c.stderr, "Key password"); err != nil {
			return services.UploadRequest{}, err
		}
	}
	if o.accessPassword {
		if req.AccessPassword, err = promptPassword(c.stdin, c.stderr, "Access password"); err != nil {
			return services.UploadRequest{}, err
		}
	}
	return req, nil
}

// detectMimeType prefers the file extension and falls back to sniffing.
func detectMimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func printUploadResult(c *cli, res *services.UploadResult) {
	fmt.Fprintln(c.stdout, successText.Sprint("✓")+" uploaded")
	fmt.Fprintln(c.stdout, "  "+highlightText.Sprint(res.ShareURL))
	printField(c.stdout, "file id", res.FileID)
	printField(c.stdout, "mode", res.KeyMode)
	printField(c.stdout, "expires", res.ExpiresAt.Format("2006-01-02 15:04 MST"))
	switch {
	case res.KeyMode == models.ModeURLFragment:
		fmt.Fprintln(c.stdout, mutedText.Sprint("  the key is only in this link; it cannot be recovered"))
	case !res.KeyMode.IsZeroKnowledge():
		fmt.Fprintln(c.stdout, errorText.Sprint("  embedded mode: the server can decrypt this file"))
	}
}
