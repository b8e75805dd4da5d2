// Package runtime provides an in-process payment runtime and viewport for
// exercising checkout orchestration without a browser.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
)

// ============================================================================
// Runtime Host
// ============================================================================

// Host simulates the page the runtime script is injected into. Its
// Bootstrap and Lookup methods feed a checkout.RuntimeLoader.
type Host struct {
	mu         sync.Mutex
	runtime    *Runtime
	delay      time.Duration
	err        error
	bootstraps int
}

// NewHost creates a host whose bootstrap installs rt
func NewHost(rt *Runtime) *Host {
	return &Host{runtime: rt}
}

// WithDelay makes the bootstrap take d
func (h *Host) WithDelay(d time.Duration) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delay = d
	return h
}

// FailWith makes the bootstrap fail with err
func (h *Host) FailWith(err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	return h
}

// Bootstrap injects the runtime
func (h *Host) Bootstrap(ctx context.Context) error {
	h.mu.Lock()
	h.bootstraps++
	delay, err := h.delay, h.err
	h.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.runtime.installed = true
	h.mu.Unlock()
	return nil
}

// Lookup returns the runtime once it has been injected, constructed with
// publishableKey
func (h *Host) Lookup(publishableKey string) checkout.PaymentRuntime {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runtime == nil || !h.runtime.installed {
		return nil
	}
	h.runtime.setKey(publishableKey)
	return h.runtime
}

// Bootstraps returns how many times the script was injected
func (h *Host) Bootstraps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bootstraps
}

// Loader returns a RuntimeLoader backed by the host
func (h *Host) Loader(opts ...checkout.LoaderOption) *checkout.RuntimeLoader {
	return checkout.NewRuntimeLoader(h.Bootstrap, h.Lookup, opts...)
}

// ============================================================================
// Runtime
// ============================================================================

// ErrUnknownToken is returned when a token was never issued
var ErrUnknownToken = errors.New("runtime: unknown client secret")

// Runtime is a fake payment runtime. It initializes one Checkout per token.
type Runtime struct {
	mu         sync.Mutex
	installed  bool
	checkouts  []*Checkout
	failInit   map[checkout.SessionToken]error
	failMount  map[checkout.SessionToken]error
	validToken func(checkout.SessionToken) bool
	key        string
}

// New creates a runtime
func New() *Runtime {
	return &Runtime{
		failInit:  make(map[checkout.SessionToken]error),
		failMount: make(map[checkout.SessionToken]error),
	}
}

// Installed creates a runtime that is already present in the page
func Installed() *Runtime {
	rt := New()
	rt.installed = true
	return rt
}

func (r *Runtime) setKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = key
}

// PublishableKey returns the key the runtime was constructed with
func (r *Runtime) PublishableKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// FailInit makes initialization for token fail
func (r *Runtime) FailInit(token checkout.SessionToken, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInit[token] = err
}

// FailMount makes mounting the checkout for token fail
func (r *Runtime) FailMount(token checkout.SessionToken, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failMount[token] = err
}

// AcceptOnly restricts the tokens the runtime accepts
func (r *Runtime) AcceptOnly(valid func(checkout.SessionToken) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validToken = valid
}

func (r *Runtime) InitEmbeddedCheckout(ctx context.Context, token checkout.SessionToken) (checkout.EmbeddedCheckout, error) {
	if err := ctx.Err(); err != nil {
		return nil, checkout.ErrCancelled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failInit[token]; ok {
		return nil, err
	}
	if r.validToken != nil && !r.validToken(token) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}

	c := &Checkout{
		token:    token,
		mountErr: r.failMount[token],
		done:     make(chan struct{}),
	}
	r.checkouts = append(r.checkouts, c)
	return c, nil
}

// Checkouts returns every checkout initialized so far
func (r *Runtime) Checkouts() []*Checkout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Checkout(nil), r.checkouts...)
}

// Tokens returns the tokens initialized so far, in order
func (r *Runtime) Tokens() []checkout.SessionToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens := make([]checkout.SessionToken, 0, len(r.checkouts))
	for _, c := range r.checkouts {
		tokens = append(tokens, c.token)
	}
	return tokens
}

// Mounted returns the checkouts currently mounted and not destroyed
func (r *Runtime) Mounted() []*Checkout {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Checkout
	for _, c := range r.checkouts {
		if c.Mounted() && !c.Destroyed() {
			out = append(out, c)
		}
	}
	return out
}

// ============================================================================
// Checkout
// ============================================================================

// Checkout is one embedded checkout form
type Checkout struct {
	mu        sync.Mutex
	token     checkout.SessionToken
	anchor    string
	mounted   bool
	destroyed bool
	mountErr  error
	done      chan struct{}
	completed bool
}

// Token returns the client secret the checkout was initialized with
func (c *Checkout) Token() checkout.SessionToken {
	return c.token
}

func (c *Checkout) Mount(anchor checkout.Anchor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return errors.New("runtime: checkout destroyed")
	}
	if c.mounted {
		return errors.New("runtime: checkout already mounted")
	}
	if c.mountErr != nil {
		return c.mountErr
	}
	c.mounted = true
	c.anchor = anchor.AnchorID()
	return nil
}

func (c *Checkout) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}

func (c *Checkout) Done() <-chan struct{} {
	return c.done
}

// Complete simulates the buyer finishing payment
func (c *Checkout) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed || c.destroyed {
		return
	}
	c.completed = true
	close(c.done)
}

// Anchor returns the anchor the checkout is mounted into
func (c *Checkout) Anchor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor
}

// Mounted reports whether Mount succeeded
func (c *Checkout) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Destroyed reports whether Destroy was called
func (c *Checkout) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
