package gatelib

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Compile-time interface check: httpProber must implement Prober.
var _ Prober = (*httpProber)(nil)

// httpProber probes http:// and https:// assets with a plain GET. An asset
// counts ready when the response status is good and, for images, the header
// decodes to valid dimensions. Transient failures are retried within the
// configured budget.
type httpProber struct {
	client    *http.Client
	headers   Headers
	readLimit int64
	retry     RetryConfig
}

// NewHTTPProber creates an HTTP prober backed by client. A nil client gets
// the probe redirect policy on http.DefaultClient semantics.
func NewHTTPProber(client *http.Client, opts *ProbeOpts) Prober {
	if client == nil {
		client = &http.Client{
			CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
		}
	}
	var headers Headers
	if opts != nil {
		headers = append(headers, opts.Headers...)
	}
	headers.InitOrUpdate(USER_AGENT_KEY, DEF_USER_AGENT)
	return &httpProber{
		client:    client,
		headers:   headers,
		readLimit: opts.readLimit(),
		retry:     opts.retry(),
	}
}

func (h *httpProber) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	var res ProbeResult
	err := withRetries(ctx, h.retry, func() error {
		var ferr error
		res, ferr = h.fetch(ctx, rawURL)
		return ferr
	})
	return res, err
}

func (h *httpProber) fetch(ctx context.Context, rawURL string) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ProbeResult{}, NewPermanentError("http", "request", err)
	}
	h.headers.Set(req.Header)

	resp, err := h.client.Do(req)
	if err != nil {
		// Client.Do errors are transport-level; let the classifier
		// decide from the underlying cause.
		return ProbeResult{}, err
	}
	defer resp.Body.Close()

	if err := checkProbeStatus(resp.StatusCode); err != nil {
		drain(resp.Body, h.readLimit)
		return ProbeResult{}, err
	}

	res := ProbeResult{
		URL:           StripURLCredentials(rawURL),
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}

	body := bufio.NewReader(io.LimitReader(resp.Body, h.readLimit))
	if looksLikeImage(res.ContentType, rawURL) {
		meta, derr := DecodeImageMeta(body)
		if derr != nil {
			return ProbeResult{}, NewPermanentError("http", "decode",
				fmt.Errorf("%s: %w", rawURL, derr))
		}
		res.Width = meta.Width
		res.Height = meta.Height
		res.Decoded = true
	} else if _, rerr := body.ReadByte(); rerr != nil && rerr != io.EOF {
		return ProbeResult{}, NewTransientError("http", "read", rerr)
	}
	drain(resp.Body, h.readLimit)
	return res, nil
}

// checkProbeStatus maps an HTTP status to a probe verdict. Server trouble
// and throttling may pass on retry; client errors never will.
func checkProbeStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return NewTransientError("http", "status",
			fmt.Errorf("server returned %d", code))
	default:
		return NewPermanentError("http", "status",
			fmt.Errorf("server returned %d", code))
	}
}

// drain empties the body up to limit so the connection can be reused.
func drain(r io.Reader, limit int64) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, limit))
}
