package htmldoc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/unveil/unveil/pkg/gatelib"
)

var (
	cssURLRe      = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	cssBgDeclRe   = regexp.MustCompile(`(?i)background[a-z-]*\s*:[^;{}]*`)
	cssFontFaceRe = regexp.MustCompile(`(?is)@font-face\s*\{[^}]*\}`)
)

// index performs the single discovery pass over the parse tree, then pulls
// linked stylesheets for background and font declarations.
func (d *PageDoc) index(ctx context.Context, opts *Opts) {
	var styleTexts []string
	var sheetHrefs []string

	walk(d.root, func(n *html.Node) {
		switch n.Data {
		case "base":
			if href := attrVal(n, "href"); href != "" {
				if b, err := url.Parse(href); err == nil {
					d.base = d.base.ResolveReference(b)
				}
			}
		case "img":
			src := attrVal(n, "src")
			u := d.resolve(src)
			if u == "" {
				return
			}
			d.images = append(d.images, imageEntry{
				ref: gatelib.ImageRef{
					ID:  d.lockedAssignID(n),
					URL: u,
				},
				node: n,
			})
		case "style":
			styleTexts = append(styleTexts, textOf(n))
		case "link":
			if !strings.Contains(strings.ToLower(attrVal(n, "rel")), "stylesheet") {
				return
			}
			if href := d.resolve(attrVal(n, "href")); href != "" {
				sheetHrefs = append(sheetHrefs, href)
			}
		}
		if style := attrVal(n, "style"); strings.Contains(style, "url(") {
			for _, u := range extractURLs(style) {
				if r := d.resolve(u); r != "" {
					d.inlineBgs = append(d.inlineBgs, bgEntry{url: r, node: n})
				}
			}
		}
	})

	for _, text := range styleTexts {
		d.scanCSS(text, d.base)
	}

	client := opts.client()
	headers := opts.headers()
	max := opts.maxStylesheets()
	for i, href := range sheetHrefs {
		if i >= max {
			d.l.Printf("htmldoc: stylesheet cap reached, skipping %d of %d\n", len(sheetHrefs)-max, len(sheetHrefs))
			break
		}
		text, base, err := fetchStylesheet(ctx, client, headers, href)
		if err != nil {
			d.l.Printf("htmldoc: stylesheet fetch failed: %s\n", err.Error())
			continue
		}
		d.scanCSS(text, base)
	}

	d.fontURLs = dedupe(d.fontURLs)
	d.sheetBgs = dedupe(d.sheetBgs)
}

func dedupe(urls []string) []string {
	if len(urls) < 2 {
		return urls
	}
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// scanCSS extracts font sources and background URLs from one stylesheet
// body, resolving relative references against the sheet's own URL.
func (d *PageDoc) scanCSS(text string, base *url.URL) {
	for _, block := range cssFontFaceRe.FindAllString(text, -1) {
		for _, u := range extractURLs(block) {
			if r := resolveAgainst(base, u); r != "" {
				d.fontURLs = append(d.fontURLs, r)
			}
		}
	}
	// Font blocks stripped first so their src urls are not double-counted
	// as backgrounds.
	rest := cssFontFaceRe.ReplaceAllString(text, "")
	for _, decl := range cssBgDeclRe.FindAllString(rest, -1) {
		for _, u := range extractURLs(decl) {
			if r := resolveAgainst(base, u); r != "" {
				d.sheetBgs = append(d.sheetBgs, r)
			}
		}
	}
}

func fetchStylesheet(ctx context.Context, client *http.Client, headers gatelib.Headers, href string) (string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return "", nil, err
	}
	headers.Set(req.Header)
	resp, err := client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", nil, fmt.Errorf("fetch %s: unexpected status %s", href, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, defMaxBodySize))
	if err != nil {
		return "", nil, err
	}
	base, err := url.Parse(href)
	if err != nil {
		return "", nil, err
	}
	return string(body), base, nil
}

// extractURLs pulls url(...) references out of CSS text, dropping fragment
// refs and non-loadable schemes.
func extractURLs(text string) []string {
	var urls []string
	for _, m := range cssURLRe.FindAllStringSubmatch(text, -1) {
		u := strings.TrimSpace(m[1])
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		if skippableScheme(u) {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func skippableScheme(u string) bool {
	lower := strings.ToLower(u)
	for _, p := range []string{"javascript:", "about:", "blob:", "mailto:"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// resolve anchors a reference against the page base.
func (d *PageDoc) resolve(ref string) string {
	return resolveAgainst(d.base, ref)
}

func resolveAgainst(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || skippableScheme(ref) {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

// lockedAssignID wraps assignID with the doc lock for use during indexing.
func (d *PageDoc) lockedAssignID(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id := d.ids[n]; id != "" {
		return id
	}
	return d.assignID(n)
}

// walk visits every element node in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// textOf concatenates the direct text children of a node.
func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
