// internal/fetch/fetch.go

// Package fetch downloads generated artifacts to local disk. Only plain
// http(s) URLs are fetchable; blob: and data: locators live inside the
// browser and cannot be retrieved from outside it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Downloader fetches artifact URLs into a target directory.
type Downloader struct {
	dir        string
	httpClient *http.Client
	logger     *zap.Logger
	// now is swappable for deterministic filenames in tests.
	now func() time.Time
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string, logger *zap.Logger) *Downloader {
	return &Downloader{
		dir:        dir,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger.Named("fetch"),
		now:        time.Now,
	}
}

// Fetchable reports whether the locator can be downloaded outside a browser.
func Fetchable(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// Download fetches one artifact and writes it as generated_<timestamp><ext>,
// with the extension derived from the response content type. Returns the
// written file path.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	if !Fetchable(url) {
		return "", fmt.Errorf("locator is not downloadable: %s", url)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	ext := extensionFor(resp.Header.Get("Content-Type"))
	name := fmt.Sprintf("generated_%d%s", d.now().UnixNano(), ext)
	path := filepath.Join(d.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	d.logger.Info("Artifact downloaded.",
		zap.String("url", url),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return path, nil
}

// extensionFor maps a response content type onto a file extension. Unknown
// types get a .bin so nothing is silently mislabeled.
func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)

	switch {
	case ct == "image/jpeg" || ct == "image/jpg":
		return ".jpg"
	case ct == "image/gif":
		return ".gif"
	case ct == "image/webp":
		return ".webp"
	case strings.HasPrefix(ct, "image/"):
		return ".png"
	case ct == "video/webm":
		return ".webm"
	case strings.HasPrefix(ct, "video/"):
		return ".mp4"
	default:
		return ".bin"
	}
}
