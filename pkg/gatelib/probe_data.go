package gatelib

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Compile-time interface check: dataProber must implement Prober.
var _ Prober = (*dataProber)(nil)

// dataProber resolves data: URIs. The payload is inline, so readiness is
// just a matter of decoding it.
type dataProber struct{}

func NewDataProber() Prober {
	return dataProber{}
}

func (dataProber) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, err
	}
	mediaType, payload, err := parseDataURL(rawURL)
	if err != nil {
		return ProbeResult{}, NewPermanentError("data", "parse", err)
	}
	res := ProbeResult{
		ContentType:   mediaType,
		ContentLength: int64(len(payload)),
	}
	if looksLikeImage(mediaType, "") {
		meta, derr := DecodeImageMeta(bytes.NewReader(payload))
		if derr != nil {
			return ProbeResult{}, NewPermanentError("data", "decode", derr)
		}
		res.Width = meta.Width
		res.Height = meta.Height
		res.Decoded = true
	}
	return res, nil
}

// parseDataURL splits a data: URI into media type and decoded payload.
// Syntax: data:[<mediatype>][;base64],<data>
func parseDataURL(rawURL string) (mediaType string, payload []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", nil, fmt.Errorf("not a data URL")
	}
	rest := rawURL[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("data URL has no payload separator")
	}
	meta, data := rest[:comma], rest[comma+1:]

	base64enc := false
	if strings.HasSuffix(meta, ";base64") {
		base64enc = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	mediaType = meta
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	if base64enc {
		payload, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return "", nil, fmt.Errorf("bad base64 payload: %w", err)
		}
		return mediaType, payload, nil
	}
	unescaped, err := url.PathUnescape(data)
	if err != nil {
		return "", nil, fmt.Errorf("bad percent-encoded payload: %w", err)
	}
	return mediaType, []byte(unescaped), nil
}
