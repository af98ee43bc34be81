package gatelib

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// Compile-time interface check: fileProber must implement Prober.
var _ Prober = (*fileProber)(nil)

// fileProber probes file:// assets against a filesystem. Display shells on
// kiosks frequently serve their media from local disk.
type fileProber struct {
	fs afero.Fs
}

// NewFileProber creates a file prober over fs. A nil fs means the OS
// filesystem.
func NewFileProber(fs afero.Fs) Prober {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &fileProber{fs: fs}
}

func (p *fileProber) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, err
	}
	path, err := fileURLPath(rawURL)
	if err != nil {
		return ProbeResult{}, NewPermanentError("file", "parse", err)
	}

	info, err := p.fs.Stat(path)
	if err != nil {
		return ProbeResult{}, NewPermanentError("file", "stat", err)
	}
	if info.IsDir() {
		return ProbeResult{}, NewPermanentError("file", "stat",
			fmt.Errorf("%s is a directory", path))
	}

	res := ProbeResult{
		URL:           rawURL,
		ContentLength: info.Size(),
	}
	if !looksLikeImage("", rawURL) {
		return res, nil
	}

	f, err := p.fs.Open(path)
	if err != nil {
		return ProbeResult{}, NewPermanentError("file", "open", err)
	}
	defer f.Close()

	meta, err := DecodeImageMeta(f)
	if err != nil {
		return ProbeResult{}, NewPermanentError("file", "decode",
			fmt.Errorf("%s: %w", path, err))
	}
	res.Width = meta.Width
	res.Height = meta.Height
	res.Decoded = true
	return res, nil
}

// fileURLPath converts a file:// URL to a filesystem path.
func fileURLPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %q", rawURL)
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return "", fmt.Errorf("remote file host %q not supported", parsed.Host)
	}
	path := parsed.Path
	if path == "" {
		return "", fmt.Errorf("empty path in file URL %q", rawURL)
	}
	if runtime.GOOS == "windows" {
		// file:///C:/x parses with a leading slash before the volume.
		if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
		path = strings.ReplaceAll(path, "/", string(os.PathSeparator))
	}
	return path, nil
}
