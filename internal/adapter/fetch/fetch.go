package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"journalrag/internal/adapter/chunkfile"
	"journalrag/internal/domain"
)

// MaxBodySize bounds how much of a remote chunk file is read.
const MaxBodySize = 64 << 20

// ErrFetch marks failures to retrieve a remote chunk file.
var ErrFetch = errors.New("fetch failed")

// Fetcher downloads chunk files over HTTP.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Chunks fetches rawURL and decodes its body as a chunk batch. A bad URL or
// body is a validation error; transport failures and non-2xx statuses are
// ErrFetch.
func (f *Fetcher) Chunks(ctx context.Context, rawURL string) (chunkfile.Batch, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return chunkfile.Batch{}, fmt.Errorf("%w: file_url must be an absolute http(s) URL", domain.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return chunkfile.Batch{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return chunkfile.Batch{}, fmt.Errorf("%w: failed to fetch file from URL: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return chunkfile.Batch{}, fmt.Errorf("%w: failed to fetch file from URL: status %s", ErrFetch, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return chunkfile.Batch{}, fmt.Errorf("%w: failed to read response body: %w", ErrFetch, err)
	}

	return chunkfile.Decode(body)
}
