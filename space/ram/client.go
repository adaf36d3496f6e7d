// Package ram provides the quota-retrying client for a remote RAM allocation
// session.
//
// A Client forwards allocations to the remote allocator it wraps. When the
// remote reports quota exhaustion, the client asks the parent for one
// fixed-size quota upgrade and retries the allocation exactly once, so a
// recoverable exhaustion becomes a transparent success and a real one fails
// after a bounded two attempts. Every other remote failure passes through
// untouched.
package ram

import (
	"errors"
	"fmt"

	"github.com/substrateos/spacekit/space/session"
)

// ServiceName is the session service name of the RAM allocation service.
const ServiceName = "RAM"

// DefaultUpgradeAmount is the quota increment requested per upgrade when
// Options leaves it unset.
const DefaultUpgradeAmount = 8 << 10

// ErrQuotaExhausted is the sentinel an allocator returns when an allocation
// would exceed its session quota. It is the one error class Client recovers
// from.
var ErrQuotaExhausted = errors.New("ram: quota exhausted")

// Allocator is the remote allocation capability a Client wraps.
type Allocator interface {
	// Alloc allocates a dataspace of size bytes and returns a capability
	// to it.
	Alloc(size uintptr) (session.Capability, error)
}

// QuotaUpgrader grants additional quota to a session; the parent implements
// it.
type QuotaUpgrader interface {
	UpgradeQuota(cap session.Capability, amount uintptr) error
}

// Options configures a Client. The zero value selects defaults.
type Options struct {
	// UpgradeAmount is the quota increment requested from the parent on
	// exhaustion. Defaults to DefaultUpgradeAmount.
	UpgradeAmount uintptr
}

// DefaultOptions returns the options NewClient substitutes for zero fields.
func DefaultOptions() Options {
	return Options{UpgradeAmount: DefaultUpgradeAmount}
}

// Client wraps a remote allocator with the single-upgrade-single-retry
// policy. All fields are immutable after construction, so a Client is safe
// for concurrent use; the retry bound is straight-line code on each call
// path, not shared state.
type Client struct {
	remote  Allocator
	cap     session.Capability
	parent  QuotaUpgrader
	upgrade uintptr
}

var _ Allocator = (*Client)(nil)

// NewClient returns a client that allocates through remote and, on
// exhaustion, upgrades the session named by cap through parent.
func NewClient(remote Allocator, cap session.Capability, parent QuotaUpgrader, opts Options) *Client {
	if opts.UpgradeAmount == 0 {
		opts.UpgradeAmount = DefaultUpgradeAmount
	}
	return &Client{remote: remote, cap: cap, parent: parent, upgrade: opts.UpgradeAmount}
}

// Alloc allocates size bytes through the remote allocator. On
// ErrQuotaExhausted it requests one quota upgrade and retries once; a second
// exhaustion is reported to the caller. Unrelated remote errors are returned
// as-is with no upgrade and no retry.
func (c *Client) Alloc(size uintptr) (session.Capability, error) {
	ds, err := c.remote.Alloc(size)
	if err == nil || !errors.Is(err, ErrQuotaExhausted) {
		return ds, err
	}

	if err := c.parent.UpgradeQuota(c.cap, c.upgrade); err != nil {
		return session.Capability{}, fmt.Errorf("ram: alloc %d bytes: quota upgrade: %w", size, err)
	}

	ds, err = c.remote.Alloc(size)
	if err != nil && errors.Is(err, ErrQuotaExhausted) {
		return session.Capability{}, fmt.Errorf("ram: alloc %d bytes: quota exhausted after upgrade: %w", size, err)
	}
	return ds, err
}
