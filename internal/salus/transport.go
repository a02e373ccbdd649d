package salus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/salus/internal/logging"
)

const (
	// DefaultTimeout bounds every vendor request. The portal has been seen to
	// hang indefinitely, so a timeout is a transport failure, never a wait.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "salus-go"

	// maxBodySize caps how much of a response is read
	maxBodySize = 1 << 20
)

// response is what the transport hands back for a 2xx reply
type response struct {
	Body   []byte
	Status int
	// URL is the final URL after redirects
	URL *url.URL
}

// transport issues vendor requests over a cookie-persisting HTTP client.
// Each Client owns one transport; cookie state is never shared between clients.
type transport struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

func newTransport(baseURL string, timeout time.Duration, httpClient *http.Client, userAgent string) (*transport, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	var c http.Client
	if httpClient != nil {
		c = *httpClient
	}
	if c.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.Jar = jar
	}
	if c.Timeout == 0 {
		c.Timeout = timeout
	}

	return &transport{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &c,
		userAgent: userAgent,
	}, nil
}

func (t *transport) get(ctx context.Context, path string, query url.Values) (*response, error) {
	return t.do(ctx, http.MethodGet, path, query, nil)
}

func (t *transport) postForm(ctx context.Context, path string, form url.Values) (*response, error) {
	return t.do(ctx, http.MethodPost, path, nil, form)
}

func (t *transport) do(ctx context.Context, method, path string, query, form url.Values) (*response, error) {
	endpoint := t.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "failed to create request", Err: err}
	}
	req.Header.Set("User-Agent", t.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, ClassifyNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	logging.LogRequest(method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(method, path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, ClassifyNetworkError("failed to read response body", err)
	}

	return &response{
		Body:   data,
		Status: resp.StatusCode,
		URL:    resp.Request.URL,
	}, nil
}
