// Package parent models the supervising side of a process: the interface a
// process uses to open, upgrade, and close sessions at its parent, the
// request router that satisfies region-manager sessions locally, and an
// in-process parent implementation for standalone processes and tools.
package parent

import (
	"errors"

	"github.com/substrateos/spacekit/space/session"
)

// ErrUnknownService reports a session request for a service the parent does
// not provide.
var ErrUnknownService = errors.New("parent: unknown service")

// Parent is the supervising interface of a process. Arguments are opaque
// session-argument strings ("ram_quota=8K"); implementations interpret the
// keys they know and forward the rest. Calls are synchronous and carry no
// timeout; callers own cancellation policy.
type Parent interface {
	// Session opens a session at the named service and returns its
	// capability.
	Session(service, args string) (session.Capability, error)

	// Close closes a session previously opened through this parent.
	// Closing an unknown or already-closed capability is a no-op.
	Close(cap session.Capability) error

	// UpgradeQuota donates amount additional bytes of quota to the
	// session named by cap.
	UpgradeQuota(cap session.Capability, amount uintptr) error
}
