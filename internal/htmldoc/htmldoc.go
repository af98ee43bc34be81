// Package htmldoc implements the static document host. It fetches a page
// once, scans the parsed tree for trackable assets and answers awaits by
// probing the asset URLs. Pages scanned this way have no live DOM, so
// mutation feeds and element events are unsupported and the gate degrades
// to the discovered asset set.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/unveil/unveil/pkg/gatelib"
)

// Compile-time interface check: PageDoc must implement gatelib.Document.
var _ gatelib.Document = (*PageDoc)(nil)

const (
	// defMaxStylesheets caps how many linked stylesheets one scan fetches.
	defMaxStylesheets = 8
	// defMaxBodySize caps the page and stylesheet bytes read.
	defMaxBodySize int64 = 8 << 20
)

// Opts configures page fetching and probing.
type Opts struct {
	// Client used for the page itself and linked stylesheets. Defaults to a
	// direct client with the probe redirect policy.
	Client *http.Client
	// Headers sent with the page request and every probe.
	Headers gatelib.Headers
	// Probe carries prober configuration (read limit, retry budget).
	Probe *gatelib.ProbeOpts
	// MaxStylesheets caps linked stylesheet fetches, defMaxStylesheets when
	// zero.
	MaxStylesheets int
}

func (o *Opts) client() *http.Client {
	if o == nil || o.Client == nil {
		c, _ := gatelib.NewHTTPClientWithProxy("")
		return c
	}
	return o.Client
}

func (o *Opts) headers() gatelib.Headers {
	if o == nil {
		return nil
	}
	return o.Headers
}

func (o *Opts) probe() *gatelib.ProbeOpts {
	if o == nil || o.Probe == nil {
		return &gatelib.ProbeOpts{Headers: o.headers()}
	}
	return o.Probe
}

func (o *Opts) maxStylesheets() int {
	if o == nil || o.MaxStylesheets <= 0 {
		return defMaxStylesheets
	}
	return o.MaxStylesheets
}

// PageDoc is one scanned page. Discovery walks the parse tree; awaits go
// through the scheme router so every probe protocol is available to static
// pages too.
type PageDoc struct {
	l      *log.Logger
	url    string
	base   *url.URL
	root   *html.Node
	router *gatelib.SchemeRouter

	mu   sync.Mutex
	ids  map[*html.Node]string
	byID map[string]*html.Node

	images      []imageEntry
	inlineBgs   []bgEntry
	sheetBgs    []string
	fontURLs    []string
	elementSeqs map[string]int
}

type imageEntry struct {
	ref  gatelib.ImageRef
	node *html.Node
}

type bgEntry struct {
	url  string
	node *html.Node
}

// Fetch downloads and scans pageURL. The scan fetches linked stylesheets
// one level deep for background and font declarations.
func Fetch(ctx context.Context, l *log.Logger, pageURL string, opts *Opts) (*PageDoc, error) {
	client := opts.client()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: %w", err)
	}
	opts.headers().Set(req.Header)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("htmldoc: fetch %s: unexpected status %s", pageURL, resp.Status)
	}
	return Parse(ctx, l, pageURL, io.LimitReader(resp.Body, defMaxBodySize), opts)
}

// Parse scans pre-fetched HTML. pageURL anchors relative asset URLs.
func Parse(ctx context.Context, l *log.Logger, pageURL string, r io.Reader, opts *Opts) (*PageDoc, error) {
	if l == nil {
		l = log.Default()
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse %s: %w", pageURL, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: bad page URL %q: %w", pageURL, err)
	}
	d := &PageDoc{
		l:           l,
		url:         pageURL,
		base:        base,
		root:        root,
		router:      gatelib.NewSchemeRouter(opts.client(), opts.probe()),
		ids:         make(map[*html.Node]string),
		byID:        make(map[string]*html.Node),
		elementSeqs: make(map[string]int),
	}
	d.index(ctx, opts)
	return d, nil
}

// URL is the page address this document represents.
func (d *PageDoc) URL() string {
	return d.url
}

// Images lists images inside the scoped subtree. A static scan cannot know
// load state, so every image starts pending and resolves via probing.
func (d *PageDoc) Images(scope string) ([]gatelib.ImageRef, error) {
	sel, err := compileScope(scope)
	if err != nil {
		return nil, err
	}
	var refs []gatelib.ImageRef
	for _, e := range d.images {
		if sel != nil && !underScope(e.node, sel) {
			continue
		}
		refs = append(refs, e.ref)
	}
	return refs, nil
}

// Backgrounds lists de-duplicated CSS background URLs. Inline styles are
// attributed to their element and honor the scope; stylesheet declarations
// cannot be attributed to a subtree in a static scan and are always
// included.
func (d *PageDoc) Backgrounds(scope string) ([]string, error) {
	sel, err := compileScope(scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	for _, e := range d.inlineBgs {
		if sel != nil && !underScope(e.node, sel) {
			continue
		}
		add(e.url)
	}
	for _, u := range d.sheetBgs {
		add(u)
	}
	return urls, nil
}

// HasFonts reports whether the scan found @font-face sources to await.
func (d *PageDoc) HasFonts() bool {
	return len(d.fontURLs) > 0
}

// AwaitFonts probes every @font-face source. A failed font is logged and
// still counts; the font set is ready either way.
func (d *PageDoc) AwaitFonts(ctx context.Context) error {
	var firstErr error
	for _, u := range d.fontURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.router.Probe(ctx, u); err != nil {
			d.l.Printf("htmldoc: font probe failed: %s\n", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// AwaitImage probes the image URL. Decode failures surface as errors so the
// tracker records the asset broken.
func (d *PageDoc) AwaitImage(ctx context.Context, img gatelib.ImageRef) error {
	_, err := d.router.Probe(ctx, img.URL)
	return err
}

// AwaitBackground probes the background URL.
func (d *PageDoc) AwaitBackground(ctx context.Context, bgURL string) error {
	_, err := d.router.Probe(ctx, bgURL)
	return err
}

// Watch is unsupported: a static scan has no live DOM to observe.
func (d *PageDoc) Watch(ctx context.Context) (<-chan gatelib.Mutation, error) {
	return nil, gatelib.ErrMutationsUnsupported
}

// Query lists elements matching the selector.
func (d *PageDoc) Query(selector string) ([]gatelib.ElementRef, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: bad selector %q: %w", selector, err)
	}
	var refs []gatelib.ElementRef
	for _, n := range cascadia.QueryAll(d.root, sel) {
		refs = append(refs, d.refFor(n))
	}
	return refs, nil
}

// Match reports whether the element matches the selector. Elements the scan
// produced match against their real node; foreign refs match against a
// synthesized one, which covers tag, class and attribute selectors.
func (d *PageDoc) Match(selector string, el gatelib.ElementRef) (bool, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return false, fmt.Errorf("htmldoc: bad selector %q: %w", selector, err)
	}
	d.mu.Lock()
	n := d.byID[el.ID]
	d.mu.Unlock()
	if n != nil {
		return sel.Match(n), nil
	}
	return sel.Match(synthesize(el)), nil
}

// On is unsupported: a static scan delivers no element events.
func (d *PageDoc) On(ctx context.Context, elementID, event string) (<-chan struct{}, func(), error) {
	return nil, nil, gatelib.ErrEventsUnsupported
}

// refFor builds the ElementRef for a node, assigning a stable id on first
// sight.
func (d *PageDoc) refFor(n *html.Node) gatelib.ElementRef {
	d.mu.Lock()
	id := d.ids[n]
	if id == "" {
		id = d.assignID(n)
	}
	d.mu.Unlock()
	return gatelib.ElementRef{
		ID:    id,
		Tag:   n.Data,
		Attrs: attrMap(n),
	}
}

// assignID keys a node by its id attribute, or a generated tag#seq name
// when it has none. Caller holds d.mu.
func (d *PageDoc) assignID(n *html.Node) string {
	id := attrVal(n, "id")
	if id == "" {
		seq := d.elementSeqs[n.Data]
		d.elementSeqs[n.Data] = seq + 1
		id = fmt.Sprintf("%s#%d", n.Data, seq)
	}
	d.ids[n] = id
	d.byID[id] = n
	return id
}

// compileScope parses a scope selector; empty scope means the whole
// document and compiles to nil.
func compileScope(scope string) (cascadia.SelectorGroup, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, nil
	}
	sel, err := cascadia.ParseGroup(scope)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: bad scope %q: %w", scope, err)
	}
	return sel, nil
}

// underScope reports whether n or any ancestor matches the scope selector.
func underScope(n *html.Node, sel cascadia.SelectorGroup) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if sel.Match(cur) {
			return true
		}
	}
	return false
}

// synthesize builds a detached node from an ElementRef for selector
// matching.
func synthesize(el gatelib.ElementRef) *html.Node {
	n := &html.Node{
		Type: html.ElementNode,
		Data: strings.ToLower(el.Tag),
	}
	for k, v := range el.Attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: v})
	}
	return n
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrMap(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
