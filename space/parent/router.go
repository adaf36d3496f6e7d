package parent

import (
	"fmt"

	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/session"
)

// Router is the local parent of a process: it intercepts the session
// requests this process can satisfy itself (creation of nested
// region-manager sessions) and forwards everything else verbatim to the
// real upstream parent.
//
// A Router holds only the immutable upstream reference and the root space
// handle, so it needs no locking. It never caches and never retries; retry
// policy lives in ram.Client.
type Router struct {
	upstream Parent
	root     *space.Space
}

var _ Parent = (*Router)(nil)

// NewRouter returns the local parent routing between root and upstream.
func NewRouter(upstream Parent, root *space.Space) *Router {
	return &Router{upstream: upstream, root: root}
}

// Session satisfies requests for the region-manager service locally: the
// size argument sizes a nested space of the root, and the returned
// capability references it. Requests for any other service go to the
// upstream untouched, argument string included, and return exactly what the
// upstream returned.
func (r *Router) Session(service, argStr string) (session.Capability, error) {
	if service != space.ServiceName {
		return r.upstream.Session(service, argStr)
	}

	a, err := args.Parse(argStr)
	if err != nil {
		return session.Capability{}, fmt.Errorf("parent: %s session: %w", service, err)
	}
	size := a.Size("size", 0)
	if size == 0 {
		return session.Capability{}, fmt.Errorf("parent: %s session: missing or zero size in %q", service, argStr)
	}

	sub := space.NewNested(r.root, size, space.Options{})
	return session.NewCapability(sub), nil
}

// Close tears down a locally created region-manager session and forwards
// every other capability to the upstream. Both paths are idempotent.
func (r *Router) Close(cap session.Capability) error {
	if sub, ok := session.Deref[*space.Space](cap); ok {
		return sub.Close()
	}
	return r.upstream.Close(cap)
}

// UpgradeQuota is a no-op for local sessions, which have no quota account,
// and forwards for everything else.
func (r *Router) UpgradeQuota(cap session.Capability, amount uintptr) error {
	if _, ok := session.Deref[*space.Space](cap); ok {
		return nil
	}
	return r.upstream.UpgradeQuota(cap, amount)
}
