// Package nip11 fetches relay information documents and checks relay capabilities.
package nip11

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	// ContentType is the media type of the relay information document.
	ContentType = "application/nostr+json"
	// NegentropyNIP is the NIP number of negentropy syncing.
	NegentropyNIP = 77

	maxInfoSize = 1 << 20
)

var ErrBadStatus = errors.New("unexpected HTTP status")

// Info is the relay information document.
type Info struct {
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Pubkey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	Software      string `json:"software,omitempty"`
	Version       string `json:"version,omitempty"`
	SupportedNIPs []int  `json:"supported_nips"`
}

// SupportsNIP returns true if the relay advertises the NIP.
func (i *Info) SupportsNIP(nip int) bool {
	return slices.Contains(i.SupportedNIPs, nip)
}

// SupportsNegentropy returns true if the relay advertises negentropy syncing.
func (i *Info) SupportsNegentropy() bool {
	return i.SupportsNIP(NegentropyNIP)
}

// A wrapper around zap.Logger to make it compatible with
// retryablehttp.LeveledLogger interface.
type retryableHttpLogger struct {
	inner *zap.Logger
}

func (r retryableHttpLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHttpLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHttpLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHttpLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

type ClientOpt func(*Client)

// WithClientLogger specifies the logger for the client.
func WithClientLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
		c.client.Logger = &retryableHttpLogger{inner: logger}
		c.client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
			c.logger.Debug(
				"response received",
				zap.Stringer("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode),
			)
		}
	}
}

// WithRetries configures the retry policy of the client.
func WithRetries(maxRetries int) ClientOpt {
	return func(c *Client) {
		c.client.RetryMax = maxRetries
	}
}

// Client fetches relay information documents.
type Client struct {
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewClient creates a Client.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		client: retryablehttp.NewClient(),
		logger: zap.NewNop(),
	}
	c.client.RetryMax = 2
	c.client.Logger = &retryableHttpLogger{inner: c.logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InfoURL returns the HTTP URL of the relay information document for the relay URL.
func InfoURL(relayURL string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("parsing relay URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported relay URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Fetch retrieves the relay information document.
func (c *Client) Fetch(ctx context.Context, relayURL string) (*Info, error) {
	infoURL, err := InfoURL(relayURL)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", ContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching relay info from %s: %w", infoURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d from %s", ErrBadStatus, resp.StatusCode, infoURL)
	}
	var info Info
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxInfoSize)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding relay info from %s: %w", infoURL, err)
	}
	return &info, nil
}
