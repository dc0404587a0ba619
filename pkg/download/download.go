package download

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
	"time"

	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/utils"
)

// ErrDownloadFailed wraps transport failures and non-200 responses.
var ErrDownloadFailed = errors.New("download failed")

// ChecksumMismatchError reports a downloaded file whose digest differs from the expected one.
type ChecksumMismatchError struct {
	Path      string
	Algorithm utils.HashAlgorithm
	Expected  string
	Actual    string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s %s, got %s", e.Path, e.Algorithm, e.Expected, e.Actual)
}

// Result describes where a fetch landed.
type Result struct {
	Path string
	// Temporary is true when the location was chosen by the client rather than the caller.
	Temporary bool
}

// Cleanup removes a temporary download and its private directory. Pinned outputs are left alone.
func (r Result) Cleanup() error {
	if !r.Temporary || r.Path == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(r.Path)); err != nil {
		return fmt.Errorf("failed to remove temporary download %s: %w", r.Path, err)
	}
	logging.Debug("Removed temporary download", "path", r.Path)
	return nil
}

// Client fetches installer packages over HTTP.
type Client struct {
	client    *http.Client
	userAgent string
	// Dir holds auto-named downloads. Empty means os.TempDir().
	Dir string
}

// New returns a Client. A zero timeout means none.
func New(timeout time.Duration, userAgent string) *Client {
	if userAgent == "" {
		userAgent = "msikit/1.0"
	}
	return &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// FileNameFromURL returns the last path segment of rawURL, or the whole URL
// sanitized into a file name when there is no usable segment.
func FileNameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return utils.SanitizeFileName(base)
		}
	}
	return utils.SanitizeFileName(rawURL)
}

// Fetch downloads rawURL. With an empty outputPath the file goes to a fresh
// directory below Dir; an existing directory receives the URL's file name;
// anything else is used as the file path.
func (c *Client) Fetch(ctx context.Context, rawURL, outputPath string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Result{}, fmt.Errorf("invalid download URL %q", rawURL)
	}

	res, err := c.resolve(rawURL, outputPath)
	if err != nil {
		return Result{}, err
	}

	logging.Info("Starting download", "url", rawURL, "destination", res.Path)
	err = c.fetchTo(ctx, rawURL, res.Path)
	if err != nil {
		if res.Temporary {
			_ = res.Cleanup()
		}
		return Result{}, err
	}
	logging.Info("Download completed", "url", rawURL, "destination", res.Path)
	return res, nil
}

func (c *Client) resolve(rawURL, outputPath string) (Result, error) {
	name := FileNameFromURL(rawURL)
	if outputPath == "" {
		dir, err := os.MkdirTemp(c.Dir, "msikit-")
		if err != nil {
			return Result{}, fmt.Errorf("failed to create download directory: %w", err)
		}
		return Result{Path: filepath.Join(dir, name), Temporary: true}, nil
	}
	if utils.IsDir(outputPath) {
		return Result{Path: filepath.Join(outputPath, name)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create directory structure: %w", err)
	}
	return Result{Path: outputPath}, nil
}

func (c *Client) fetchTo(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code %d from %s", ErrDownloadFailed, resp.StatusCode, rawURL)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "dl-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrDownloadFailed, dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return nil
}

// Verify hashes path and compares the digest to expected, ignoring case.
func Verify(path string, algo utils.HashAlgorithm, expected string) error {
	actual, err := utils.FileHash(path, algo)
	if err != nil {
		return fmt.Errorf("failed to compute checksum: %w", err)
	}
	if !utils.HashEqual(actual, expected) {
		return &ChecksumMismatchError{Path: path, Algorithm: algo, Expected: expected, Actual: actual}
	}
	logging.Debug("Checksum verified", "path", path, "algorithm", string(algo))
	return nil
}
