package provision

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/schollz/progressbar/v3"
	"lukechampine.com/blake3"
)

// Fetcher downloads release archives. Downloads have no overall deadline;
// they end when the body is read or ctx is cancelled.
type Fetcher struct {
	client   *http.Client
	progress io.Writer
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) FetchOption {
	return func(f *Fetcher) { f.client = c }
}

// WithProgress renders a progress bar to w while downloading.
func WithProgress(w io.Writer) FetchOption {
	return func(f *Fetcher) { f.progress = w }
}

// NewFetcher creates a Fetcher with a TLS 1.2+ client.
func NewFetcher(opts ...FetchOption) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	transport.TLSHandshakeTimeout = 30 * time.Second

	f := &Fetcher{client: &http.Client{Transport: transport}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL to dest and returns the BLAKE3-256 digest of the
// body in hex. The body is written to dest+".part" first and renamed on
// success, so dest never holds a partial download.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}

	h := blake3.New(32, nil)
	w := io.MultiWriter(out, h)
	if f.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionSetDescription("downloading "+archiveName(rawURL)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(w, bar)
	}

	_, err = io.Copy(w, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// archiveName returns the last path element of rawURL, e.g. "ninja-linux.zip".
func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
