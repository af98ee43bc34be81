package gatelib

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDoc is a scripted Document for driving trackers, watchers and gates
// in tests. Await delays are keyed by URL; mutations and element events are
// pushed by the test.
type fakeDoc struct {
	url string

	mu          sync.Mutex
	images      []ImageRef
	backgrounds []string
	elements    map[string][]ElementRef
	hasFonts    bool

	fontDelay  time.Duration
	fontErr    error
	imagesErr  error
	imageDelay map[string]time.Duration
	imageErr   map[string]error
	bgDelay    map[string]time.Duration
	bgErr      map[string]error

	noMutations bool
	noEvents    bool

	events map[string]chan struct{}
	feeds  []chan Mutation

	imagesCalls int32
	watchCalls  int32
}

func newFakeDoc(url string) *fakeDoc {
	return &fakeDoc{
		url:        url,
		elements:   make(map[string][]ElementRef),
		imageDelay: make(map[string]time.Duration),
		imageErr:   make(map[string]error),
		bgDelay:    make(map[string]time.Duration),
		bgErr:      make(map[string]error),
		events:     make(map[string]chan struct{}),
	}
}

func (d *fakeDoc) URL() string { return d.url }

func (d *fakeDoc) Images(string) ([]ImageRef, error) {
	atomic.AddInt32(&d.imagesCalls, 1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.imagesErr != nil {
		return nil, d.imagesErr
	}
	return append([]ImageRef(nil), d.images...), nil
}

func (d *fakeDoc) Backgrounds(string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.backgrounds...), nil
}

func (d *fakeDoc) HasFonts() bool { return d.hasFonts }

func (d *fakeDoc) AwaitFonts(ctx context.Context) error {
	return d.wait(ctx, d.fontDelay, d.fontErr)
}

func (d *fakeDoc) AwaitImage(ctx context.Context, img ImageRef) error {
	d.mu.Lock()
	delay, err := d.imageDelay[img.URL], d.imageErr[img.URL]
	d.mu.Unlock()
	return d.wait(ctx, delay, err)
}

func (d *fakeDoc) AwaitBackground(ctx context.Context, url string) error {
	d.mu.Lock()
	delay, err := d.bgDelay[url], d.bgErr[url]
	d.mu.Unlock()
	return d.wait(ctx, delay, err)
}

func (d *fakeDoc) wait(ctx context.Context, delay time.Duration, err error) error {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (d *fakeDoc) Watch(context.Context) (<-chan Mutation, error) {
	atomic.AddInt32(&d.watchCalls, 1)
	if d.noMutations {
		return nil, ErrMutationsUnsupported
	}
	feed := make(chan Mutation, 16)
	d.mu.Lock()
	d.feeds = append(d.feeds, feed)
	d.mu.Unlock()
	return feed, nil
}

func (d *fakeDoc) Query(selector string) ([]ElementRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ElementRef(nil), d.elements[selector]...), nil
}

// Match is scripted as tag equality; tests set Tag to the selector on
// elements they want matched.
func (d *fakeDoc) Match(selector string, el ElementRef) (bool, error) {
	return el.Tag == selector, nil
}

func (d *fakeDoc) On(_ context.Context, elementID, _ string) (<-chan struct{}, func(), error) {
	if d.noEvents {
		return nil, nil, ErrEventsUnsupported
	}
	d.mu.Lock()
	ch, ok := d.events[elementID]
	if !ok {
		ch = make(chan struct{}, 1)
		d.events[elementID] = ch
	}
	d.mu.Unlock()
	return ch, func() {}, nil
}

func (d *fakeDoc) pushMutation(mut Mutation) {
	d.mu.Lock()
	feeds := append([]chan Mutation(nil), d.feeds...)
	d.mu.Unlock()
	for _, f := range feeds {
		f <- mut
	}
}

func (d *fakeDoc) fireEvent(id string) {
	d.mu.Lock()
	ch, ok := d.events[id]
	if !ok {
		ch = make(chan struct{}, 1)
		d.events[id] = ch
	}
	d.mu.Unlock()
	select {
	case ch <- struct{}{}:
	default:
	}
}

// closeEvent closes the element's event channel without a send, modeling a
// subscription torn down before the event ever fired.
func (d *fakeDoc) closeEvent(id string) {
	d.mu.Lock()
	ch, ok := d.events[id]
	if !ok {
		ch = make(chan struct{})
		d.events[id] = ch
	}
	d.mu.Unlock()
	close(ch)
}

// captureHandlers records every gate callback for assertions.
type captureHandlers struct {
	mu       sync.Mutex
	progress []Progress
	reveals  []*RevealEvent
	states   []RunState
	settles  int
	cancels  int
	assets   []string
	errs     []error
}

func (c *captureHandlers) handlers() *Handlers {
	return &Handlers{
		ProgressHandler: func(_ string, p Progress) {
			c.mu.Lock()
			c.progress = append(c.progress, p)
			c.mu.Unlock()
		},
		AssetHandler: func(_ string, kind AssetKind, url string, ok bool) {
			c.mu.Lock()
			c.assets = append(c.assets, string(kind)+":"+url)
			c.mu.Unlock()
		},
		SettleHandler: func(string) {
			c.mu.Lock()
			c.settles++
			c.mu.Unlock()
		},
		StateHandler: func(_ string, s RunState) {
			c.mu.Lock()
			c.states = append(c.states, s)
			c.mu.Unlock()
		},
		RevealHandler: func(_ string, ev *RevealEvent) {
			c.mu.Lock()
			c.reveals = append(c.reveals, ev)
			c.mu.Unlock()
		},
		CancelHandler: func(string) {
			c.mu.Lock()
			c.cancels++
			c.mu.Unlock()
		},
		ErrorHandler: func(_ string, err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		},
	}
}

func (c *captureHandlers) revealCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reveals)
}

func (c *captureHandlers) lastReveal() *RevealEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reveals) == 0 {
		return nil
	}
	return c.reveals[len(c.reveals)-1]
}

func (c *captureHandlers) progressValues() []Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Progress(nil), c.progress...)
}

// waitClosed fails the test if ch does not close within d.
func waitClosed(t *testing.T, ch <-chan struct{}, d time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatalf("%s did not fire within %v", what, d)
	}
}

// assertOpen fails the test if ch is closed right now.
func assertOpen(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s fired but should not have", what)
	default:
	}
}
