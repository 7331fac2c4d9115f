package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"
)

// Fetcher downloads tabular sources over HTTP(S).
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewFetcher creates a fetcher with the given request timeout and body size cap.
// A zero maxBytes disables the cap. Unless allowPrivate is set, connections
// to loopback, private, link-local and unspecified addresses are refused
// after DNS resolution, so redirects and rebinding cannot reach them either.
func NewFetcher(timeout time.Duration, maxBytes int64, userAgent string, allowPrivate bool) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !allowPrivate {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   publicOnly,
		}
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

// publicOnly is a net.Dialer Control hook. address is already resolved.
func publicOnly(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !isPublicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}
	return nil
}

func isPublicAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsValid() &&
		!a.IsLoopback() &&
		!a.IsPrivate() &&
		!a.IsLinkLocalUnicast() &&
		!a.IsLinkLocalMulticast() &&
		!a.IsInterfaceLocalMulticast() &&
		!a.IsMulticast() &&
		!a.IsUnspecified()
}

// Fetch downloads rawURL and parses it. Only http and https are allowed.
// The format comes from the Content-Type header or the path extension.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Dataset, error) {
	u, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, &IngestionError{Source: rawURL, Err: err}
	}
	source := u.Redacted()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %v", ErrUnsupportedURL, err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return nil, &IngestionError{Source: source, Err: err}
		}
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %w", ErrUnreachable, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %d bytes", ErrFileTooLarge, resp.ContentLength)}
	}

	body, err := io.ReadAll(newLimitReader(resp.Body, f.maxBytes))
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, &IngestionError{Source: source, Err: err}
		}
		return nil, &IngestionError{Source: source, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}

	format := DetectFormat(path.Base(u.Path), resp.Header.Get("Content-Type"))
	return ReadDataset(source, bytes.NewReader(body), format)
}

func parseSourceURL(rawURL string) (*url.URL, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, fmt.Errorf("%w: empty url", ErrUnsupportedURL)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}
	return u, nil
}
