package gatelib

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// Compile-time interface check: ftpProber must implement Prober.
var _ Prober = (*ftpProber)(nil)

// ftpProber probes ftp:// and ftps:// assets. Signage decks on legacy
// infrastructure still pull media off plain FTP mirrors.
// Credentials from the URL are used for login but never persisted.
type ftpProber struct {
	readLimit int64
	retry     RetryConfig
}

func NewFTPProber(opts *ProbeOpts) Prober {
	return &ftpProber{
		readLimit: opts.readLimit(),
		retry:     opts.retry(),
	}
}

func (p *ftpProber) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	target, err := parseFTPURL(rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	var res ProbeResult
	err = withRetries(ctx, p.retry, func() error {
		var ferr error
		res, ferr = p.fetch(ctx, target)
		return ferr
	})
	return res, err
}

type ftpTarget struct {
	rawURL   string
	host     string
	path     string
	user     string
	password string
	useTLS   bool
}

func parseFTPURL(rawURL string) (*ftpTarget, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewPermanentError("ftp", "parse", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "ftp" && scheme != "ftps" {
		return nil, NewPermanentError("ftp", "scheme",
			fmt.Errorf("unsupported scheme %q, expected ftp or ftps", scheme))
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, NewPermanentError("ftp", "path",
			fmt.Errorf("empty or root path in FTP URL: file path is required"))
	}

	// Default to anonymous auth
	user, password := "anonymous", "anonymous"
	if parsed.User != nil {
		user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			password = p
		}
	}

	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":21"
	}

	return &ftpTarget{
		rawURL:   rawURL,
		host:     host,
		path:     parsed.Path,
		user:     user,
		password: password,
		useTLS:   scheme == "ftps",
	}, nil
}

func (p *ftpProber) fetch(ctx context.Context, t *ftpTarget) (ProbeResult, error) {
	conn, err := p.connect(ctx, t)
	if err != nil {
		return ProbeResult{}, classifyFTPError("connect", err)
	}
	defer conn.Quit()

	size, err := conn.FileSize(t.path)
	if err != nil {
		return ProbeResult{}, classifyFTPError("size", err)
	}

	res := ProbeResult{
		URL:           StripURLCredentials(t.rawURL),
		ContentLength: size,
	}
	if !looksLikeImage("", t.rawURL) {
		return res, nil
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		return ProbeResult{}, NewPermanentError("ftp", "type", err)
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		return ProbeResult{}, classifyFTPError("retr", err)
	}
	defer resp.Close()

	meta, derr := DecodeImageMeta(io.LimitReader(resp, p.readLimit))
	if derr != nil {
		return ProbeResult{}, NewPermanentError("ftp", "decode",
			fmt.Errorf("%s: %w", t.path, derr))
	}
	res.Width = meta.Width
	res.Height = meta.Height
	res.Decoded = true
	return res, nil
}

// connect establishes a connection to the FTP server with optional TLS.
func (p *ftpProber) connect(ctx context.Context, t *ftpTarget) (*ftp.ServerConn, error) {
	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(30 * time.Second),
		ftp.DialWithContext(ctx),
	}
	if t.useTLS {
		hostname := t.host
		if h, _, err := net.SplitHostPort(t.host); err == nil {
			hostname = h
		}
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: hostname,
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ftp.Dial(t.host, dialOpts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(t.user, t.password); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

// classifyFTPError classifies FTP errors into transient or permanent.
// RFC 959: 4xx replies are transient, 5xx are permanent. Network errors are
// treated as transient.
func classifyFTPError(op string, err error) *ProbeError {
	if err == nil {
		return nil
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 400 && tpErr.Code < 500 {
			return NewTransientError("ftp", op, err)
		}
		return NewPermanentError("ftp", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransientError("ftp", op, err)
	}

	return NewPermanentError("ftp", op, err)
}
