package gatelib

import "context"

// ImageRef identifies one image the document exposes for tracking.
type ImageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	// Complete means the host already reports the image loaded (or failed);
	// it counts done without awaiting.
	Complete bool `json:"complete,omitempty"`
	// Broken marks a completed image that failed to load.
	Broken bool `json:"broken,omitempty"`
}

// ElementRef identifies one element for the custom signal watcher.
type ElementRef struct {
	ID    string            `json:"id"`
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	// Complete means the host already considers the element loaded.
	Complete bool `json:"complete,omitempty"`
}

// Mutation is a batch of additions observed after initial discovery.
type Mutation struct {
	Images      []ImageRef   `json:"images,omitempty"`
	Backgrounds []string     `json:"backgrounds,omitempty"`
	Elements    []ElementRef `json:"elements,omitempty"`
}

func (m Mutation) empty() bool {
	return len(m.Images) == 0 && len(m.Backgrounds) == 0 && len(m.Elements) == 0
}

// Document is the host facility surface a gate consumes. A static page
// scan, a live shell session and test fakes all implement it.
//
// Hosts without a given facility return the matching *Unsupported sentinel;
// trackers and watchers degrade instead of failing the run.
type Document interface {
	// URL is the page address this document represents.
	URL() string

	// Images lists images inside the scoped subtree; empty scope means the
	// whole document.
	Images(scope string) ([]ImageRef, error)

	// Backgrounds lists de-duplicated CSS background image URLs inside the
	// scoped subtree.
	Backgrounds(scope string) ([]string, error)

	// HasFonts reports whether the host exposes a font readiness facility.
	HasFonts() bool

	// AwaitFonts blocks until the document's font set is ready or failed.
	// A failure return still counts the font set ready.
	AwaitFonts(ctx context.Context) error

	// AwaitImage blocks until the image has loaded or failed, using the
	// richest facility the host offers (decode style await where present,
	// load/error semantics otherwise).
	AwaitImage(ctx context.Context, img ImageRef) error

	// AwaitBackground blocks until the background URL has loaded or failed,
	// the offscreen probe path.
	AwaitBackground(ctx context.Context, url string) error

	// Watch streams additions. Each call returns an independent feed; the
	// feed closes when ctx ends. Hosts without mutation observation return
	// ErrMutationsUnsupported.
	Watch(ctx context.Context) (<-chan Mutation, error)

	// Query lists elements matching the selector.
	Query(selector string) ([]ElementRef, error)

	// Match reports whether a single element matches the selector.
	Match(selector string, el ElementRef) (bool, error)

	// On subscribes to one event on one element. The returned channel
	// receives (or closes) when the event fires; the cancel func releases
	// the subscription. Hosts without element events return
	// ErrEventsUnsupported.
	On(ctx context.Context, elementID, event string) (<-chan struct{}, func(), error)
}
