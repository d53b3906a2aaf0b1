// Package importer fetches case pages from public registries and parses
// them into staging proposals. Each supported site has its own parser; a
// generic parser handles everything else.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// fetchTimeout bounds one page fetch.
const fetchTimeout = 30 * time.Second

// maxPageBytes caps how much of a page is read.
const maxPageBytes = 4 << 20

// ErrBlocked is returned when a site refuses the request. Callers fall
// back to asking the user to paste the page HTML.
var ErrBlocked = errors.New("importer: site blocked the request")

// Fetcher retrieves pages over HTTP.
type Fetcher struct {
	httpc  *http.Client
	logger *slog.Logger
}

// NewFetcher returns a Fetcher with sane timeouts.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpc:  &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Fetch retrieves a page and returns its HTML. A 403 maps to ErrBlocked;
// registries commonly reject non-browser clients.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("importer: build request: %w", err)
	}
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("importer: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("importer: fetch %s: status 403: %w", url, ErrBlocked)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("importer: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("importer: read %s: %w", url, err)
	}
	f.logger.Debug("page fetched", "url", url, "bytes", len(data))
	return string(data), nil
}
