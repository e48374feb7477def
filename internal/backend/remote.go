package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultRemoteTimeout = 10 * time.Second

// maxRemoteBlob caps how much of a remote response Read will buffer.
const maxRemoteBlob = 16 << 20

// Remote stores the blob behind an HTTP resource: GET reads it (404 means
// absent) and PUT replaces it. A flyer server exposes one at /api/blob.
type Remote struct {
	url     string
	client  *http.Client
	maxBlob int64
}

// NewRemote returns a Remote for rawURL. A zero timeout selects a default.
func NewRemote(rawURL string, timeout time.Duration) (*Remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("remote backend needs an http(s) URL, got %q", rawURL)
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{url: u.String(), client: &http.Client{Timeout: timeout}, maxBlob: maxRemoteBlob}, nil
}

func (r *Remote) Read(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", r.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAbsent
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: unexpected status %s", r.url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBlob+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", r.url, err)
	}
	if int64(len(data)) > r.maxBlob {
		return nil, fmt.Errorf("GET %s: %w (over %d bytes)", r.url, ErrTooLarge, r.maxBlob)
	}
	return data, nil
}

func (r *Remote) Write(ctx context.Context, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url, bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", r.url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("PUT %s: unexpected status %s", r.url, resp.Status)
	}
	return nil
}

func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Remote) String() string {
	return "remote " + r.url
}
