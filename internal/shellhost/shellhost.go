// Package shellhost implements the live document host. A shell embedding a
// page posts its DOM state over the wire: one snapshot before the gate
// starts, then mutation batches, asset completions and element events while
// the run is active. The session translates those reports into the document
// facility surface the gate consumes.
package shellhost

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/gatelib"
)

// Compile-time interface check: Session must implement gatelib.Document.
var _ gatelib.Document = (*Session)(nil)

var (
	ErrSnapshotMissing = errors.New("shell session has no snapshot yet")
	ErrSnapshotPosted  = errors.New("shell session snapshot was already posted")
	ErrSessionClosed   = errors.New("shell session is closed")
	ErrUnknownReport   = errors.New("unknown shell report kind")
)

// mutationBuffer bounds a watch feed; a shell flooding mutations drops
// batches rather than stalling report handling.
const mutationBuffer = 16

type assetState struct {
	done chan struct{}
	ok   bool
}

// Session is one live gated page. The shell owns the real DOM; the session
// answers the gate from what the shell reported. Selector matching runs
// against synthesized nodes, so tag, class and attribute selectors work;
// structural selectors cannot.
type Session struct {
	l   *log.Logger
	url string

	mu       sync.Mutex
	snap     *common.ShellSnapshot
	snapCh   chan struct{}
	assets   map[string]*assetState
	fontsCh  chan struct{}
	watchers map[int]chan gatelib.Mutation
	nextW    int
	events   map[string][]chan struct{}
	closed   bool
	closeCh  chan struct{}
}

// NewSession creates a session for the given page URL. The gate must not
// run until PostSnapshot delivered the initial DOM state.
func NewSession(l *log.Logger, pageURL string) *Session {
	if l == nil {
		l = log.Default()
	}
	return &Session{
		l:        l,
		url:      pageURL,
		snapCh:   make(chan struct{}),
		assets:   make(map[string]*assetState),
		fontsCh:  make(chan struct{}),
		watchers: make(map[int]chan gatelib.Mutation),
		events:   make(map[string][]chan struct{}),
		closeCh:  make(chan struct{}),
	}
}

// Apply dispatches one wire report into the session.
func (s *Session) Apply(rep *common.ReportParams) error {
	switch rep.Kind {
	case common.REPORT_SNAPSHOT:
		if rep.Snapshot == nil {
			return fmt.Errorf("%w: snapshot report without payload", ErrUnknownReport)
		}
		return s.PostSnapshot(*rep.Snapshot)
	case common.REPORT_MUTATION:
		if rep.Mutation == nil {
			return fmt.Errorf("%w: mutation report without payload", ErrUnknownReport)
		}
		return s.PostMutation(*rep.Mutation)
	case common.REPORT_ASSET:
		if rep.Asset == nil {
			return fmt.Errorf("%w: asset report without payload", ErrUnknownReport)
		}
		return s.PostAsset(*rep.Asset)
	case common.REPORT_EVENT:
		if rep.Event == nil {
			return fmt.Errorf("%w: event report without payload", ErrUnknownReport)
		}
		return s.PostEvent(rep.Event.ElementId, rep.Event.Event)
	case common.REPORT_FONTS:
		return s.PostFontsReady()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReport, rep.Kind)
	}
}

// PostSnapshot installs the initial DOM state. Exactly one snapshot is
// accepted per session.
func (s *Session) PostSnapshot(snap common.ShellSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.snap != nil {
		return ErrSnapshotPosted
	}
	s.snap = &snap
	close(s.snapCh)
	return nil
}

// HasSnapshot reports whether the initial DOM state arrived.
func (s *Session) HasSnapshot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap != nil
}

// SnapshotArrived closes once the shell posts its snapshot. The gate over a
// shell session must not start tracking before then.
func (s *Session) SnapshotArrived() <-chan struct{} {
	return s.snapCh
}

// PostMutation fans a mutation batch out to every live watch feed.
func (s *Session) PostMutation(m gatelib.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, ch := range s.watchers {
		select {
		case ch <- m:
		default:
			s.l.Printf("shellhost: mutation feed full, dropping batch\n")
		}
	}
	return nil
}

// PostAsset resolves the await for one reported asset. Reports carrying
// both an id and a url resolve either await key.
func (s *Session) PostAsset(a common.AssetDone) error {
	var keys []string
	if a.Id != "" {
		keys = append(keys, a.Kind+":"+a.Id)
	}
	if a.Url != "" {
		keys = append(keys, a.Kind+":"+a.Url)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: asset report without id or url", ErrUnknownReport)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, key := range keys {
		st := s.assets[key]
		if st == nil {
			st = &assetState{done: make(chan struct{})}
			s.assets[key] = st
		}
		select {
		case <-st.done:
			continue // duplicate report
		default:
		}
		st.ok = a.Ok
		close(st.done)
	}
	return nil
}

// PostEvent resolves every subscription for one element event. Feeds get a
// send, not a close; a closed feed means the subscription was abandoned.
func (s *Session) PostEvent(elementID, event string) error {
	key := eventKey(elementID, event)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	subs := s.events[key]
	delete(s.events, key)
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// PostFontsReady marks the document font set ready.
func (s *Session) PostFontsReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case <-s.fontsCh:
	default:
		close(s.fontsCh)
	}
	return nil
}

// Close tears the session down. Pending awaits fail with ErrSessionClosed
// and watch feeds close.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.closeCh)
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	for key, subs := range s.events {
		for _, ch := range subs {
			close(ch)
		}
		delete(s.events, key)
	}
}

// URL is the page address this session represents.
func (s *Session) URL() string {
	return s.url
}

// Images lists the snapshot's images. The shell scoped its snapshot against
// the gate config before posting, so the scope argument is not re-applied.
func (s *Session) Images(scope string) ([]gatelib.ImageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, ErrSnapshotMissing
	}
	return append([]gatelib.ImageRef(nil), s.snap.Images...), nil
}

// Backgrounds lists the snapshot's background URLs.
func (s *Session) Backgrounds(scope string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, ErrSnapshotMissing
	}
	return append([]string(nil), s.snap.Backgrounds...), nil
}

// HasFonts reports whether the shell exposes a font readiness facility.
func (s *Session) HasFonts() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap != nil && s.snap.HasFonts
}

// AwaitFonts blocks until the shell reports the font set ready.
func (s *Session) AwaitFonts(ctx context.Context) error {
	select {
	case <-s.fontsCh:
		return nil
	case <-s.closeCh:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitImage blocks until the shell reports the image done. A report with
// ok=false surfaces as an error so the tracker records the image broken.
func (s *Session) AwaitImage(ctx context.Context, img gatelib.ImageRef) error {
	return s.awaitAsset(ctx, assetKey("image", img.ID, img.URL))
}

// AwaitBackground blocks until the shell reports the background URL done.
func (s *Session) AwaitBackground(ctx context.Context, bgURL string) error {
	return s.awaitAsset(ctx, assetKey("background", "", bgURL))
}

func (s *Session) awaitAsset(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	st := s.assets[key]
	if st == nil {
		st = &assetState{done: make(chan struct{})}
		s.assets[key] = st
	}
	s.mu.Unlock()

	select {
	case <-st.done:
	case <-s.closeCh:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	if !st.ok {
		return fmt.Errorf("shellhost: asset %s reported broken", key)
	}
	return nil
}

// Watch returns a feed of mutation batches. The feed closes when ctx ends
// or the session closes.
func (s *Session) Watch(ctx context.Context) (<-chan gatelib.Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	id := s.nextW
	s.nextW++
	ch := make(chan gatelib.Mutation, mutationBuffer)
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.closeCh:
			return // Close already closed the feed
		}
		s.mu.Lock()
		if c, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(c)
		}
		s.mu.Unlock()
	}()
	return ch, nil
}

// Query lists snapshot elements matching the selector.
func (s *Session) Query(selector string) ([]gatelib.ElementRef, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, ErrSnapshotMissing
	}
	var out []gatelib.ElementRef
	for _, el := range s.snap.Elements {
		if sel.Match(synthesize(el)) {
			out = append(out, el)
		}
	}
	return out, nil
}

// Match reports whether the element matches the selector.
func (s *Session) Match(selector string, el gatelib.ElementRef) (bool, error) {
	sel, err := compile(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(synthesize(el)), nil
}

// On subscribes to one element event. The channel receives when the shell
// reports the event and closes if the session tears down first; cancel
// releases the subscription.
func (s *Session) On(ctx context.Context, elementID, event string) (<-chan struct{}, func(), error) {
	key := eventKey(elementID, event)
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrSessionClosed
	}
	s.events[key] = append(s.events[key], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.events[key]
		for i, c := range subs {
			if c == ch {
				s.events[key] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	return ch, cancel, nil
}

func compile(selector string) (cascadia.SelectorGroup, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("shellhost: bad selector %q: %w", selector, err)
	}
	return sel, nil
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

func assetKey(kind, id, url string) string {
	if id != "" {
		return kind + ":" + id
	}
	if url != "" {
		return kind + ":" + url
	}
	return ""
}

func eventKey(elementID, event string) string {
	return elementID + "\x00" + event
}
