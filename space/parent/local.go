package parent

import (
	"fmt"
	"sync"

	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space/dataspace"
	"github.com/substrateos/spacekit/space/ram"
	"github.com/substrateos/spacekit/space/session"
)

// DefaultLocalQuota is the RAM quota a Local grants per session when
// LocalOptions leaves it unset.
const DefaultLocalQuota = 16 << 20

// LocalOptions configures a Local parent. The zero value selects defaults.
type LocalOptions struct {
	// Quota is the initial RAM byte quota per RAM session. Defaults to
	// DefaultLocalQuota.
	Quota uintptr
}

// LocalStats counts the traffic a Local has served; the inspection tools
// display it.
type LocalStats struct {
	SessionCalls int
	CloseCalls   int
	UpgradeCalls int
	OpenSessions int
}

// Local is an in-process upstream parent: it plays the role the
// personality's core would play for a real child, so a standalone process,
// a demo, or a test can run the full session protocol without one. It
// serves "RAM" (an accountable allocator handing out anonymous dataspaces),
// plus placeholder "CPU" and "PD" sessions.
type Local struct {
	quota uintptr

	mu       sync.Mutex
	sessions map[uint64]*localSession
	stats    LocalStats
}

var _ Parent = (*Local)(nil)

type localSession struct {
	service string
	ram     *ramSession
}

// NewLocal returns an in-process parent.
func NewLocal(opts LocalOptions) *Local {
	if opts.Quota == 0 {
		opts.Quota = DefaultLocalQuota
	}
	return &Local{quota: opts.Quota, sessions: make(map[uint64]*localSession)}
}

// Session opens a session. "RAM" accepts a ram_quota argument overriding the
// configured default; the returned capability dereferences to a
// ram.Allocator. "CPU" and "PD" return opaque placeholder capabilities.
func (l *Local) Session(service, argStr string) (session.Capability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.SessionCalls++

	switch service {
	case ram.ServiceName:
		a, err := args.Parse(argStr)
		if err != nil {
			return session.Capability{}, fmt.Errorf("parent: RAM session: %w", err)
		}
		rs := &ramSession{quota: a.Size("ram_quota", l.quota)}
		cap := session.NewCapability(ram.Allocator(rs))
		l.sessions[cap.ID()] = &localSession{service: service, ram: rs}
		return cap, nil
	case "CPU", "PD":
		ls := &localSession{service: service}
		cap := session.NewCapability(ls)
		l.sessions[cap.ID()] = ls
		return cap, nil
	default:
		return session.Capability{}, fmt.Errorf("parent: session %q: %w", service, ErrUnknownService)
	}
}

// Close releases a session and, for RAM sessions, every dataspace it handed
// out. Closing an unknown capability is a no-op.
func (l *Local) Close(cap session.Capability) error {
	l.mu.Lock()
	ls, ok := l.sessions[cap.ID()]
	delete(l.sessions, cap.ID())
	l.stats.CloseCalls++
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if ls.ram != nil {
		ls.ram.release()
	}
	return nil
}

// UpgradeQuota raises the quota of a RAM session by amount. Upgrades on
// non-RAM sessions are accepted and ignored, matching a core that accounts
// donations it has no use for.
func (l *Local) UpgradeQuota(cap session.Capability, amount uintptr) error {
	l.mu.Lock()
	ls, ok := l.sessions[cap.ID()]
	l.stats.UpgradeCalls++
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("parent: upgrade of unknown session %d", cap.ID())
	}
	if ls.ram != nil {
		ls.ram.upgrade(amount)
	}
	return nil
}

// Stats returns a snapshot of the traffic counters.
func (l *Local) Stats() LocalStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.OpenSessions = len(l.sessions)
	return s
}

// ramSession is one RAM session's quota account and allocation book.
type ramSession struct {
	mu      sync.Mutex
	quota   uintptr
	used    uintptr
	granted []*dataspace.Anon
}

var _ ram.Allocator = (*ramSession)(nil)

// Alloc allocates an anonymous dataspace against the session quota.
func (s *ramSession) Alloc(size uintptr) (session.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used+size > s.quota {
		return session.Capability{}, fmt.Errorf("parent: alloc %d bytes (used %d of %d): %w",
			size, s.used, s.quota, ram.ErrQuotaExhausted)
	}
	ds, err := dataspace.NewAnon("ram-session", size)
	if err != nil {
		return session.Capability{}, fmt.Errorf("parent: alloc %d bytes: %w", size, err)
	}
	s.used += size
	s.granted = append(s.granted, ds)
	return session.NewCapability(dataspace.Dataspace(ds)), nil
}

func (s *ramSession) upgrade(amount uintptr) {
	s.mu.Lock()
	s.quota += amount
	s.mu.Unlock()
}

func (s *ramSession) release() {
	s.mu.Lock()
	granted := s.granted
	s.granted = nil
	s.used = 0
	s.mu.Unlock()
	for _, ds := range granted {
		ds.Close()
	}
}
