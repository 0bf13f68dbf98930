package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/providers/observability"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is the default User-Agent header value
	DefaultUserAgent = "stategraph-webfetch/1.0"
	// MaxBodySize is the maximum response body size (10MB)
	MaxBodySize = 10 * 1024 * 1024
	// DialTimeout is the maximum time to wait for a TCP connection
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the maximum time to wait for TLS handshake
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is the maximum time to wait for response headers
	ResponseHeaderTimeout = 10 * time.Second
	// IdleConnTimeout is the maximum time an idle connection can be reused
	IdleConnTimeout = 90 * time.Second

	maxRedirects = 10
)

// ErrEmptyURL is returned when no URL was given.
var ErrEmptyURL = errors.New("URL cannot be empty")

// Input describes one fetch.
type Input struct {
	// URL may be partial ("example.com"); https:// is prepended when no scheme is present.
	URL string `json:"url"`
	// Timeout overrides the fetcher's timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
	// IncludeHTML keeps the raw HTML in the output.
	IncludeHTML bool `json:"include_html,omitempty"`
}

// Output is the fetched page.
type Output struct {
	// URL is the final URL after redirects.
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
}

// Fetcher performs page fetches. The zero value is not usable; call [New].
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client. Its CheckRedirect is kept as is.
func WithHTTPClient(client *http.Client) Option {
	return func(fetcher *Fetcher) { fetcher.client = client }
}

// WithTimeout sets the per-request timeout. Default: [DefaultTimeout].
func WithTimeout(timeout time.Duration) Option {
	return func(fetcher *Fetcher) {
		if timeout > 0 {
			fetcher.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header. Default: [DefaultUserAgent].
func WithUserAgent(userAgent string) Option {
	return func(fetcher *Fetcher) { fetcher.userAgent = userAgent }
}

// New returns a Fetcher whose transport bounds every connection phase so slow
// servers cannot block a node indefinitely.
func New(opts ...Option) *Fetcher {
	fetcher := &Fetcher{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   TLSHandshakeTimeout,
				ResponseHeaderTimeout: ResponseHeaderTimeout,
				IdleConnTimeout:       IdleConnTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				ForceAttemptHTTP2:     true,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (>%d)", maxRedirects)
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher
}

// NormalizeURL trims url and prepends https:// when it has no scheme.
func NormalizeURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url, nil
}

// Fetch retrieves input.URL and returns its content as Markdown.
//
// It fails when the URL is empty, the status is not 200 OK, the body exceeds
// [MaxBodySize], the conversion fails, or the context ends.
func (fetcher *Fetcher) Fetch(ctx context.Context, input Input) (Output, error) {
	url, err := NormalizeURL(input.URL)
	if err != nil {
		return Output{}, err
	}

	timeout := fetcher.timeout
	if input.Timeout > 0 {
		timeout = input.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	observer := observability.ObserverFromContext(ctx)
	if observer != nil {
		var span observability.Span
		ctx, span = observer.StartSpan(ctx, "webfetch.fetch", observability.String(observability.AttrHTTPURL, url))
		defer span.End()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Output{}, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("User-Agent", fetcher.userAgent)
	request.Header.Set("Accept", "text/html,application/xhtml+xml")

	response, err := fetcher.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, fmt.Errorf("request timeout or canceled: %w", err)
		}
		return Output{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil && observer != nil {
			observer.Warn(ctx, "failed to close response body", observability.Error(closeErr))
		}
	}()

	if response.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("unexpected status code: %d %s", response.StatusCode, http.StatusText(response.StatusCode))
	}

	// One byte past the limit tells an oversized body from one that fits exactly.
	htmlBytes, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, fmt.Errorf("timeout while reading response body: %w", ctx.Err())
		}
		return Output{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(htmlBytes) > MaxBodySize {
		return Output{}, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return Output{}, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	if observer != nil {
		observer.Debug(ctx, "page fetched",
			observability.String(observability.AttrHTTPURL, response.Request.URL.String()),
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(htmlBytes)),
		)
	}

	output := Output{
		URL:      response.Request.URL.String(),
		Markdown: strings.TrimSpace(markdown),
	}
	if input.IncludeHTML {
		output.HTML = string(htmlBytes)
	}
	return output, nil
}

// Node returns a graph node that fetches the URL stored in urlField and
// writes the Markdown into markdownField and the final URL into finalURLField.
// An empty finalURLField skips that write.
func (fetcher *Fetcher) Node(urlField, markdownField, finalURLField string) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.Update, error) {
		url, err := state.Text(urlField)
		if err != nil {
			return nil, err
		}

		output, err := fetcher.Fetch(ctx, Input{URL: url})
		if err != nil {
			return nil, err
		}

		update := graph.Update{markdownField: output.Markdown}
		if finalURLField != "" {
			update[finalURLField] = output.URL
		}
		return update, nil
	}
}
