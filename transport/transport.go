// Package transport is the single place where network I/O happens. It wraps
// a TLS-fingerprint-faking client because the streaming backends gate access
// by request fingerprint and reject vanilla Go TLS handshakes.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/aniterm/aniterm/types"
)

// UserAgent matches the TLS client profile below; sources may override it
// per request but most backends expect the two to agree.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Gecko/20100101 Firefox/121.0"

// DefaultTimeout bounds every request. There is no retry at this layer;
// retry policy belongs to the resolution pipeline.
const DefaultTimeout = 12 * time.Second

// Request describes one outbound exchange.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   io.Reader
}

// Response is a fully read, unparsed reply.
type Response struct {
	Status int
	Body   []byte
}

// Doer issues requests. Sources depend on this interface so tests can swap
// in canned responses.
type Doer interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Client is the shared production Doer. Connections are pooled inside the
// underlying client; Client itself is stateless and safe for concurrent use.
type Client struct {
	hc tls_client.HttpClient
}

// New builds a client with the given per-request timeout. A zero timeout
// means DefaultTimeout.
func New(timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(),
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Firefox_117),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	)
	if err != nil {
		return nil, err
	}
	return &Client{hc: hc}, nil
}

// Fetch performs the exchange and reads the whole body. Connection failures,
// timeouts and non-2xx statuses all surface as *types.TransportError; the
// payload is never interpreted here.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		return nil, &types.TransportError{Kind: types.TransportConnect, URL: req.URL, Err: err}
	}

	hreq.Header.Set("User-Agent", UserAgent)
	for k, v := range req.Header {
		hreq.Header.Set(k, v)
	}

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, classify(req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.TransportError{Kind: types.TransportStatus, URL: req.URL, Status: resp.StatusCode}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func classify(url string, err error) *types.TransportError {
	kind := types.TransportConnect

	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = types.TransportTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = types.TransportTimeout
	case strings.Contains(err.Error(), "Client.Timeout"):
		kind = types.TransportTimeout
	}

	return &types.TransportError{Kind: kind, URL: url, Err: err}
}
