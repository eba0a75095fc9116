// Package registry is the client for the remote identifier registry's
// programmatic API: minting, updating and viewing records over HTTP Basic
// auth, plus the asynchronous bulk-export protocol.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/logger"
	"github.com/speccoll/arkmint/pkg/ports"
)

// successMarker prefixes every successful registry response line; the
// identifier follows it.
const successMarker = "success: "

// RejectedError is a non-success response from mint, update or the export
// request. The raw body is kept so the operator can see what the registry
// said. Never retried automatically.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("registry rejected request (status %d): %s", e.Status, e.Body)
}

type Options struct {
	BaseURL  string
	Username string
	Password string

	// AuditFile, when set, gets the identifier and submitted record
	// appended after every successful mint or update.
	AuditFile string

	// DownloadDir is where bulk-export files are saved. Defaults to ".".
	DownloadDir string

	// PollInterval and PollAttempts bound the export download loop.
	// Zero values take the registry defaults (5s, 60 attempts).
	PollInterval time.Duration
	PollAttempts int

	HTTPClient *http.Client
	Log        logger.Logger
}

type Client struct {
	baseURL      string
	username     string
	password     string
	auditFile    string
	downloadDir  string
	pollInterval time.Duration
	pollAttempts int
	httpc        *http.Client
	log          logger.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		username:     opts.Username,
		password:     opts.Password,
		auditFile:    opts.AuditFile,
		downloadDir:  opts.DownloadDir,
		pollInterval: opts.PollInterval,
		pollAttempts: opts.PollAttempts,
		httpc:        opts.HTTPClient,
		log:          opts.Log,
	}
	if c.downloadDir == "" {
		c.downloadDir = "."
	}
	if c.pollInterval == 0 {
		c.pollInterval = 5 * time.Second
	}
	if c.pollAttempts == 0 {
		c.pollAttempts = 60
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c
}

// Mint creates a new identifier under shoulder and returns it.
func (c *Client) Mint(ctx context.Context, shoulder string, rec *anvl.Record) (string, error) {
	return c.post(ctx, "/shoulder/"+shoulder, rec)
}

// Update overwrites the record for an existing identifier and returns the
// confirmed identifier.
func (c *Client) Update(ctx context.Context, ark string, rec *anvl.Record) (string, error) {
	return c.post(ctx, "/id/"+ark, rec)
}

func (c *Client) post(ctx context.Context, path string, rec *anvl.Record) (string, error) {
	body := rec.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading registry response: %w", err)
	}

	line := firstLine(string(raw))
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !strings.HasPrefix(line, successMarker) {
		return "", &RejectedError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	ark := strings.TrimSpace(line[len(successMarker):])
	c.audit(ark, body)
	return ark, nil
}

// View fetches the raw record text for ark. A registry "error: ..." body is
// returned as-is for the caller to interpret; only transport failures error.
func (c *Client) View(ctx context.Context, ark string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/id/"+ark, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading registry response: %w", err)
	}
	return string(raw), nil
}

// audit appends the identifier and submitted record to the audit file. The
// trail is informational; a write failure is logged, not returned.
func (c *Client) audit(ark, body string) {
	if c.auditFile == "" {
		return
	}
	f, err := os.OpenFile(c.auditFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		c.log.Warn("audit file open failed", logger.String("file", c.auditFile), logger.Err(err))
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, ":: %s\n%s\n", ark, strings.TrimSpace(body)); err != nil {
		c.log.Warn("audit file write failed", logger.String("file", c.auditFile), logger.Err(err))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Ensure interface compliance
var _ ports.RegistryClient = (*Client)(nil)
