package gatelib

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ProbeResult holds what a prober learned about one asset.
type ProbeResult struct {
	// URL is the probed asset URL, credentials stripped.
	URL string
	// ContentType as reported by the server, empty when unknown.
	ContentType string
	// ContentLength is the asset size in bytes. -1 means unknown.
	ContentLength int64
	// Width and Height are pixel dimensions when the asset decoded as an
	// image, zero otherwise.
	Width  int
	Height int
	// Decoded reports whether image metadata decoding succeeded.
	Decoded bool
}

// Prober loads an asset far enough to know it would render: the bytes are
// reachable and, for images, the header decodes. Probers are the await
// mechanism of document hosts that have no live page to ask.
//
// A Prober must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (ProbeResult, error)
}

// ProbeError is a structured error from a prober.
// Use errors.As to extract and inspect probe errors.
type ProbeError struct {
	// Scheme identifies the prober that produced the error (e.g., "http").
	Scheme string
	// Op is the operation that failed (e.g., "fetch", "connect", "decode").
	Op string
	// Cause is the underlying error.
	Cause error
	// transient indicates whether the error may be retried.
	transient bool
}

// Error implements the error interface.
// Format: "scheme op: cause"
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Scheme, e.Op, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s", e.Scheme, e.Op)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chaining.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// IsTransient returns true if this error is transient and may be retried.
func (e *ProbeError) IsTransient() bool {
	return e.transient
}

// NewTransientError creates a ProbeError that may be retried.
func NewTransientError(scheme, op string, cause error) *ProbeError {
	return &ProbeError{
		Scheme:    scheme,
		Op:        op,
		Cause:     cause,
		transient: true,
	}
}

// NewPermanentError creates a ProbeError that should not be retried.
func NewPermanentError(scheme, op string, cause error) *ProbeError {
	return &ProbeError{
		Scheme:    scheme,
		Op:        op,
		Cause:     cause,
		transient: false,
	}
}

// ErrUnsupportedProbeScheme is returned when an asset URL has an
// unregistered scheme. The full error message lists what is supported.
var ErrUnsupportedProbeScheme = fmt.Errorf("unsupported scheme")

// SchemeRouter maps URL schemes to Prober implementations. It is the
// dispatch point for protocol-agnostic asset probing.
// The zero value is not usable; use NewSchemeRouter to create one.
type SchemeRouter struct {
	routes map[string]Prober
}

// NewSchemeRouter creates a SchemeRouter pre-configured with HTTP, HTTPS,
// FTP, FTPS, data and file probers. The HTTP probers share the provided
// client. Register sftp separately; it needs host key material.
func NewSchemeRouter(client *http.Client, opts *ProbeOpts) *SchemeRouter {
	if opts == nil {
		opts = &ProbeOpts{}
	}
	r := &SchemeRouter{
		routes: make(map[string]Prober),
	}
	hp := NewHTTPProber(client, opts)
	r.routes["http"] = hp
	r.routes["https"] = hp

	fp := NewFTPProber(opts)
	r.routes["ftp"] = fp
	r.routes["ftps"] = fp

	r.routes["data"] = NewDataProber()
	r.routes["file"] = NewFileProber(nil)
	return r
}

// Register adds or replaces the prober for the given scheme.
// scheme must be lowercase (e.g., "sftp").
func (r *SchemeRouter) Register(scheme string, p Prober) {
	r.routes[strings.ToLower(scheme)] = p
}

// Probe dispatches rawURL to the prober registered for its scheme.
// The scheme is matched case-insensitively.
func (r *SchemeRouter) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	if rawURL == "" {
		return ProbeResult{}, fmt.Errorf("%w: empty URL", ErrUnsupportedProbeScheme)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		return ProbeResult{}, fmt.Errorf("%w: no scheme in URL %q", ErrUnsupportedProbeScheme, rawURL)
	}
	p, ok := r.routes[scheme]
	if !ok {
		return ProbeResult{}, fmt.Errorf(
			"%w %q, supported: %s",
			ErrUnsupportedProbeScheme,
			scheme,
			strings.Join(SupportedSchemes(r), ", "),
		)
	}
	return p.Probe(ctx, rawURL)
}

// SupportedSchemes returns a sorted list of all registered schemes.
func SupportedSchemes(r *SchemeRouter) []string {
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// StripURLCredentials removes userinfo (username:password) from a URL
// string. If parsing fails the original URL is returned unchanged.
func StripURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// ProbeOpts carries shared prober configuration.
type ProbeOpts struct {
	// Headers set on every HTTP probe request.
	Headers Headers
	// ReadLimit caps how many body bytes a probe may drain.
	// Defaults to DEF_PROBE_READ_LIMIT.
	ReadLimit int64
	// Retry overrides the retry behavior for transient errors.
	Retry *RetryConfig
}

func (o *ProbeOpts) readLimit() int64 {
	if o == nil || o.ReadLimit <= 0 {
		return DEF_PROBE_READ_LIMIT
	}
	return o.ReadLimit
}

func (o *ProbeOpts) retry() RetryConfig {
	if o == nil || o.Retry == nil {
		return DefaultRetryConfig()
	}
	return *o.Retry
}
