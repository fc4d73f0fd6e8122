package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxBodyBytes caps a single TLE document. The full Celestrak catalog is
// well under 5 MB.
const maxBodyBytes = 50 << 20

// Source retrieves raw TLE documents by locator.
type Source interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Fetcher retrieves TLE documents over HTTP(S). Locators with a file://
// prefix are read from the local filesystem.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "zeitsat/1.0",
		logger:     logger,
	}
}

// Fetch retrieves the document at locator. Failures are returned as
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if path, ok := strings.CutPrefix(locator, "file://"); ok {
		return f.readFile(locator, path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Locator: locator,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("unexpected status code %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Locator: locator, Status: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{
			Locator: locator,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("response exceeds %d byte limit", maxBodyBytes),
		}
	}

	f.logger.Debug("fetched TLE document",
		"component", "tle",
		"locator", locator,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func (f *Fetcher) readFile(locator, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		status := 0
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		return nil, &FetchError{Locator: locator, Status: status, Err: err}
	}
	if info.Size() > maxBodyBytes {
		return nil, &FetchError{Locator: locator, Err: fmt.Errorf("file exceeds %d byte limit", maxBodyBytes)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	return data, nil
}
