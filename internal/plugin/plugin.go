// Package plugin defines the audio transform chain of the processing stage.
//
// A transform receives a PCM payload and returns a replacement payload. The
// chain applies its enabled transforms in registration order, each feeding
// the next. Failure isolation is a hard contract: a transform that returns
// an error is skipped for that frame, its input passes through unmodified,
// and the failure is counted, never aborting the frame or the pipeline. A
// defective transform may degrade audio quality, not availability.
package plugin

import (
	"errors"
	"fmt"
	"sync"
)

// Transform is one pluggable audio enhancement step. Implementations must be
// safe for use from the single processing goroutine; they are never called
// concurrently with each other for the same chain.
type Transform interface {
	// Name identifies the transform in configuration, logs, and statistics.
	Name() string

	// Apply processes one PCM payload (16-bit LE mono) and returns the
	// replacement. Returning an error skips this transform for the frame.
	// Apply must not retain or mutate pcm after returning.
	Apply(pcm []byte) ([]byte, error)
}

// Entry pairs a transform with its enable flag. Entries are data: the chain
// holds a fixed, ordered slice of them and never mutates individual entries
// while frames are in flight.
type Entry struct {
	Transform Transform
	Enabled   bool
}

// Chain is the ordered transform sequence applied to every frame. The
// sequence is immutable during operation; [Chain.Swap] replaces it wholesale
// under a lock the processing stage only acquires to snapshot the slice,
// never across a transform call.
type Chain struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewChain creates a chain over the given entries. The slice is copied.
func NewChain(entries ...Entry) *Chain {
	c := &Chain{}
	c.Swap(entries)
	return c
}

// Snapshot returns the current entry sequence. The returned slice must be
// treated as read-only.
func (c *Chain) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// Swap atomically replaces the whole entry sequence. Per-entry mutation is
// deliberately unsupported.
func (c *Chain) Swap(entries []Entry) {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	c.mu.Lock()
	c.entries = cp
	c.mu.Unlock()
}

// Apply runs pcm through every enabled transform in order and returns the
// result plus the number of transform failures. A failing transform is
// skipped: the following transform receives the failing one's input.
// The onError callback (optional) receives each failure for logging.
func (c *Chain) Apply(pcm []byte, onError func(name string, err error)) ([]byte, int) {
	failures := 0
	for _, e := range c.Snapshot() {
		if !e.Enabled {
			continue
		}
		out, err := e.Transform.Apply(pcm)
		if err != nil {
			failures++
			if onError != nil {
				onError(e.Transform.Name(), err)
			}
			continue
		}
		pcm = out
	}
	return pcm, failures
}

// ErrNotRegistered is returned by [Registry.Create] when no factory has been
// registered under the requested transform name.
var ErrNotRegistered = errors.New("plugin: transform not registered")

// Factory constructs a transform instance.
type Factory func() (Transform, error)

// Registry maps transform names to their factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the builtin transforms.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("passthrough", func() (Transform, error) { return Passthrough{}, nil })
	r.Register("dcblock", func() (Transform, error) { return NewDCBlock(), nil })
	return r
}

// Register adds a factory under name. Subsequent calls with the same name
// overwrite the previous registration.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create instantiates the transform registered under name.
func (r *Registry) Create(name string) (Transform, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return f()
}
