// Package ctyfetch downloads the cty.dat country file over HTTP.
package ctyfetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/user00265/hamtools/internal/logging"
	"github.com/user00265/hamtools/version"
)

const (
	downloadTimeout = 60 * time.Second
	maxBodySize     = 16 << 20
)

var (
	// ErrEmptyBody is returned when the source answers 200 with no content.
	ErrEmptyBody = errors.New("country file download returned an empty body")
	// ErrTooLarge is returned when the body, or its gunzipped form, is
	// larger than Fetcher.MaxBodySize.
	ErrTooLarge = errors.New("country file exceeds the size limit")
)

// HTTPDoer is satisfied by *http.Client; tests inject their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for a non-200 answer. 4xx answers are not retried.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download from %s returned non-OK status: %s", e.URL, e.Status)
}

// Fetcher downloads the country file with retries.
type Fetcher struct {
	HTTPClient HTTPDoer
	Retries    int

	// InitialInterval is the first wait between attempts.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxBodySize caps the downloaded and the decompressed size. Zero means 16 MiB.
	MaxBodySize int64
}

// New returns a Fetcher that retries a failed download up to retries times.
func New(retries int) *Fetcher {
	if retries < 0 {
		retries = 0
	}
	return &Fetcher{
		HTTPClient:      &http.Client{Timeout: downloadTimeout},
		Retries:         retries,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// Fetch downloads url and returns its body, gunzipped when the body carries
// the gzip magic number.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	attempt := 0
	op := func() error {
		attempt++
		var err error
		data, err = f.download(ctx, url)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrTooLarge) {
			return backoff.Permanent(err)
		}
		logging.Warn("Country file download attempt %d from %s failed: %v", attempt, url, err)
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = f.InitialInterval
	expBackoff.MaxInterval = f.MaxInterval
	expBackoff.MaxElapsedTime = 0
	expBackoff.Multiplier = 2

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(f.Retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("country file download failed after %d attempt(s): %w", attempt, err)
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request for %s: %w", url, err))
	}
	req.Header.Set("User-Agent", version.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode}
	}

	limit := f.MaxBodySize
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read country file from %s: %w", url, err)
	}
	data, err = gunzip(data, limit)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBody
	}
	logging.Debug("Downloaded %d bytes of country file from %s", len(data), url)
	return data, nil
}

// gunzip decompresses data when it starts with the gzip magic number.
func gunzip(data []byte, limit int64) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad gzip header in country file: %w", err)
	}
	defer gzr.Close()
	dec, err := readLimited(gzr, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress country file: %w", err)
	}
	return dec, nil
}

// readLimited reads all of r, failing with ErrTooLarge instead of
// truncating when r holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
