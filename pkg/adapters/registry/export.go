package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/speccoll/arkmint/pkg/logger"
)

// csvColumnsHint explains the most common export rejection: the registry
// refuses CSV requests that don't name their columns.
const csvColumnsHint = "CSV exports must name their columns; pass them as repeated " +
	"column=dc.title&column=dc.creator parameters (see the registry's download-formats documentation)"

// ExportRejectedError means the bulk-export request itself was refused.
// Fatal for the export invocation.
type ExportRejectedError struct {
	Status int
	Body   string
	Hint   string
}

func (e *ExportRejectedError) Error() string {
	msg := fmt.Sprintf("export request rejected (status %d): %s", e.Status, e.Body)
	if e.Hint != "" {
		msg += "\n" + e.Hint
	}
	return msg
}

// ExportTimeoutError means the polling budget ran out (or the wait was
// cancelled) before the registry finished preparing the file. Not fatal: the
// file may still appear at URL and can be downloaded manually.
type ExportTimeoutError struct {
	URL      string
	Attempts int
}

func (e *ExportTimeoutError) Error() string {
	return fmt.Sprintf("export file not ready after %d attempts; try downloading manually from %s", e.Attempts, e.URL)
}

// RequestExport asks the registry to prepare a bulk export and returns the
// URL where the file will eventually appear. The registry builds the file
// asynchronously; follow up with Download.
func (c *Client) RequestExport(ctx context.Context, format, compression string, extra url.Values) (string, error) {
	form := url.Values{}
	form.Set("format", format)
	form.Set("compression", compression)
	for key, values := range extra {
		for _, v := range values {
			form.Add(key, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download_request",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading export response: %w", err)
	}

	line := firstLine(string(raw))
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !strings.HasPrefix(line, successMarker) {
		rejected := &ExportRejectedError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		if format == "csv" && len(extra["column"]) == 0 {
			rejected.Hint = csvColumnsHint
		}
		return "", rejected
	}

	fileURL := strings.TrimSpace(line[len(successMarker):])
	c.log.Info("export requested", logger.String("url", fileURL))
	return fileURL, nil
}

// Download polls fileURL on a fixed interval until the registry has the file
// ready, then saves it under DownloadDir using the filename embedded in the
// URL. Returns the saved path, or ExportTimeoutError once the attempt budget
// is spent or ctx is cancelled.
func (c *Client) Download(ctx context.Context, fileURL string) (string, error) {
	// A URL we can't derive a filename from would fail every poll anyway.
	name, err := exportFilename(fileURL)
	if err != nil {
		return "", err
	}

	fetch := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("export not ready: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	body, err := backoff.Retry(ctx, fetch,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxTries(uint(c.pollAttempts)),
	)
	if err != nil {
		// Only a spent poll budget (or cancellation) is a timeout; an error
		// marked permanent never used the budget.
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return "", fmt.Errorf("export download failed: %w", err)
		}
		return "", &ExportTimeoutError{URL: fileURL, Attempts: c.pollAttempts}
	}

	dest := filepath.Join(c.downloadDir, name)
	if err := os.WriteFile(dest, body, 0644); err != nil {
		return "", fmt.Errorf("saving export file: %w", err)
	}

	c.log.Info("export saved", logger.String("file", dest))
	return dest, nil
}

func exportFilename(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("bad export url %q: %w", fileURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("export url %q has no filename", fileURL)
	}
	return name, nil
}
