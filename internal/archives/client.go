// Package archives talks to the records application that owns the file
// server. Deletions go through its edit queue, never straight to disk.
package archives

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/fshttp"
	"github.com/rclone/rclone/lib/rest"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// DefaultTimeout bounds each edit request.
const DefaultTimeout = 30 * time.Second

const editPath = "/api/server_change"

// Client implements sweep.DeletionService against the records application.
type Client struct {
	rest    *rest.Client
	baseURL string
	timeout time.Duration
}

var _ sweep.DeletionService = (*Client)(nil)

// NewClient builds a client from cfg. A URL without a scheme is assumed to be https.
func NewClient(ctx context.Context, cfg config.ArchivesConfig) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, ci := fs.AddConfig(ctx)
	ci.Timeout = timeout
	ci.InsecureSkipVerify = cfg.InsecureSkipVerify
	ci.Headers = append(ci.Headers,
		&fs.HTTPOption{Key: "user", Value: cfg.User},
		&fs.HTTPOption{Key: "password", Value: cfg.Password},
	)

	base := BaseURL(cfg.URL)
	return &Client{
		rest:    rest.NewClient(fshttp.NewClient(ctx)).SetRoot(base),
		baseURL: base,
		timeout: timeout,
	}
}

// BaseURL prefixes https:// unless rawURL already names http or https.
func BaseURL(rawURL string) string {
	u := strings.TrimRight(rawURL, "/")
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// EnqueueDelete asks the records application to delete localPath. Any
// non-2xx status, transport failure, or timeout is an error.
func (c *Client) EnqueueDelete(ctx context.Context, localPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := rest.Opts{
		Method: "GET",
		Path:   editPath,
		Parameters: url.Values{
			"edit_type": {"DELETE"},
			"old_path":  {localPath},
			"new_path":  {""},
		},
		NoResponse: true,
	}
	if _, err := c.rest.Call(ctx, &opts); err != nil {
		return fmt.Errorf("enqueue delete %s: %w", localPath, err)
	}
	return nil
}

// Close is a no-op; idle connections belong to the shared transport.
func (c *Client) Close() error {
	return nil
}
