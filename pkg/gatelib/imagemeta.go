package gatelib

import (
	"image"
	"io"
	"strings"

	// Register the decoders image.DecodeConfig needs. A probe decodes only
	// the header, never full pixel data.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageMeta is the decoded header of an image asset.
type ImageMeta struct {
	Width  int
	Height int
	Format string
}

// DecodeImageMeta reads just enough of r to determine the image's format
// and dimensions. It never decodes pixel data.
func DecodeImageMeta(r io.Reader) (ImageMeta, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageMeta{}, err
	}
	return ImageMeta{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// looksLikeImage guesses from content type and URL path whether an asset
// should decode as an image. Probers use it to decide whether a failed
// decode is a broken asset or simply a non-image one.
func looksLikeImage(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/") {
		// SVG renders without a bitmap header to decode.
		return !strings.Contains(ct, "svg")
	}
	if ct != "" && ct != "application/octet-stream" {
		return false
	}
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"} {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
