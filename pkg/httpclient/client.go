// Package httpclient provides an HTTP client that presents a browser-like
// TLS fingerprint, with optional proxy support.
package httpclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	"embed-resolver/pkg/config"
	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
)

// DefaultUserAgent matches the Chrome fingerprint sent by the TLS layer.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxPageSize caps how much of a response body FetchPage reads.
const maxPageSize = 8 << 20

// Client fetches pages the way a desktop browser would. HTTPS requests go
// through a utls Chrome handshake; plain HTTP uses a standard transport.
type Client struct {
	plain   *http.Client
	browser *http.Client
	log     *logging.Logger
}

// New creates a client. cfg.GlobalProxy, when set, routes every request:
// socks5 proxies carry both transports, http(s) proxies only the plain one.
func New(cfg *config.Config, log *logging.Logger) (*Client, error) {
	c := &Client{log: log.WithComponent("httpclient")}

	transport := &http.Transport{
		DialContext:           ipv4DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	var dialer proxy.ContextDialer = &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	useBrowserTLS := true

	if cfg.GlobalProxy != "" {
		proxyURL, err := url.Parse(cfg.GlobalProxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}

		switch proxyURL.Scheme {
		case "socks5", "socks5h":
			d, err := proxy.FromURL(proxyURL, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("creating socks5 dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks5 dialer does not support contexts")
			}
			transport.DialContext = cd.DialContext
			dialer = cd
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
			// utls dials the origin directly and cannot tunnel through CONNECT.
			useBrowserTLS = false
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
		c.log.Info("using global proxy", "proxy", proxyURL.Redacted())
	}

	c.plain = &http.Client{Transport: transport, Timeout: 30 * time.Second}
	if useBrowserTLS {
		c.browser = &http.Client{Transport: newUTLSRoundTripper(dialer, transport), Timeout: 30 * time.Second}
	} else {
		c.browser = c.plain
	}
	return c, nil
}

// ipv4DialContext forces IPv4-only connections.
func ipv4DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "tcp" {
		network = "tcp4"
	}
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 60 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// utlsRoundTripper implements http.RoundTripper with utls and HTTP/2 support.
type utlsRoundTripper struct {
	dialer      proxy.ContextDialer
	fallback    http.RoundTripper
	h2Transport *http2.Transport
}

func newUTLSRoundTripper(dialer proxy.ContextDialer, fallback http.RoundTripper) *utlsRoundTripper {
	return &utlsRoundTripper{
		dialer:      dialer,
		fallback:    fallback,
		h2Transport: &http2.Transport{},
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.fallback.RoundTrip(req)
	}

	addr := req.URL.Host
	if req.URL.Port() == "" {
		addr = net.JoinHostPort(req.URL.Hostname(), "443")
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	utlsConn := utls.UClient(conn, &utls.Config{ServerName: req.URL.Hostname()}, utls.HelloChrome_120)
	if err := utlsConn.HandshakeContext(req.Context()); err != nil {
		conn.Close()
		return nil, err
	}

	if utlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(utlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}

	return doHTTP1Request(utlsConn, req)
}

func doHTTP1Request(conn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	resp.Body = &connCloser{resp.Body, conn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}

// Do executes an HTTP request with the browser fingerprint.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.browser.Do(req)
}

// FetchPage GETs pageURL with browser headers and returns the body.
// Non-2xx responses are errors.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	for k, v := range BrowserHeaders() {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !IsHTML(ct) {
		return "", fmt.Errorf("unexpected content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	c.log.Debug("fetched page", "url", pageURL, "status", resp.StatusCode, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return string(body), nil
}

// BrowserHeaders returns the request headers sent with page fetches.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      DefaultUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	}
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

var _ interfaces.HTTPClient = (*Client)(nil)
