// Package env constructs the process environment: the one-time wiring of the
// platform mapper, the root address space, the request router, and the core
// resource sessions a process opens at its parent.
//
// An Env is built exactly once at process start and passed to the components
// that need it; nothing in this module reaches for ambient global state, so
// a test can build an Env over a fake parent and a fake mapper.
package env

import (
	"fmt"
	"sync"

	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/internal/hostmem"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/parent"
	"github.com/substrateos/spacekit/space/ram"
	"github.com/substrateos/spacekit/space/session"
)

// DefaultRAMQuota is the quota requested with the RAM session when Options
// leaves it unset.
const DefaultRAMQuota = 16 << 20

// Options configures an Env. Zero fields select defaults.
type Options struct {
	// Space configures the root address space.
	Space space.Options

	// RAM configures the quota-retry client.
	RAM ram.Options

	// RAMQuota is the quota requested when opening the RAM session.
	// Defaults to DefaultRAMQuota.
	RAMQuota uintptr

	// Mapper overrides the host mapping primitive; nil selects the
	// platform mapper. Tests substitute fakes here.
	Mapper space.Mapper
}

// DefaultOptions returns the options New substitutes for zero fields.
func DefaultOptions() Options {
	return Options{
		Space:    space.DefaultOptions(),
		RAM:      ram.DefaultOptions(),
		RAMQuota: DefaultRAMQuota,
	}
}

// Env is the process environment. All accessors are safe for concurrent use
// after New returns; the wired components carry their own locking.
type Env struct {
	router *parent.Router
	root   *space.Space
	ram    *ram.Client

	ramCap session.Capability
	cpuCap session.Capability
	pdCap  session.Capability

	closeOnce sync.Once
	closeErr  error
}

// New builds the process environment over the given upstream parent: the
// platform mapper and root space, the router in front of the upstream, and
// the RAM, CPU, and PD sessions every process opens at construction.
func New(upstream parent.Parent, opts Options) (*Env, error) {
	if opts.RAMQuota == 0 {
		opts.RAMQuota = DefaultRAMQuota
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper = hostmem.New()
	}

	root := space.NewRoot(mapper, opts.Space)
	router := parent.NewRouter(upstream, root)

	ramCap, err := router.Session(ram.ServiceName, "ram_quota="+args.FormatSize(opts.RAMQuota))
	if err != nil {
		return nil, fmt.Errorf("env: open RAM session: %w", err)
	}
	alloc, ok := session.Deref[ram.Allocator](ramCap)
	if !ok {
		router.Close(ramCap)
		return nil, fmt.Errorf("env: RAM session capability does not reference an allocator")
	}

	cpuCap, err := router.Session("CPU", "")
	if err != nil {
		router.Close(ramCap)
		return nil, fmt.Errorf("env: open CPU session: %w", err)
	}
	pdCap, err := router.Session("PD", "")
	if err != nil {
		router.Close(cpuCap)
		router.Close(ramCap)
		return nil, fmt.Errorf("env: open PD session: %w", err)
	}

	return &Env{
		router: router,
		root:   root,
		ram:    ram.NewClient(alloc, ramCap, router, opts.RAM),
		ramCap: ramCap,
		cpuCap: cpuCap,
		pdCap:  pdCap,
	}, nil
}

// Parent returns the process's parent interface: the router, which serves
// region-manager sessions locally and forwards the rest upstream.
func (e *Env) Parent() parent.Parent { return e.router }

// RM returns the root address space of the process.
func (e *Env) RM() *space.Space { return e.root }

// RAM returns the quota-retrying allocation client.
func (e *Env) RAM() *ram.Client { return e.ram }

// CPUCap returns the CPU session capability opened at construction.
func (e *Env) CPUCap() session.Capability { return e.cpuCap }

// PDCap returns the PD session capability opened at construction.
func (e *Env) PDCap() session.Capability { return e.pdCap }

// Close tears the environment down: the three core sessions through the
// router, then the root space. Idempotent; the first error wins.
func (e *Env) Close() error {
	e.closeOnce.Do(func() {
		for _, cap := range []session.Capability{e.pdCap, e.cpuCap, e.ramCap} {
			if err := e.router.Close(cap); err != nil && e.closeErr == nil {
				e.closeErr = fmt.Errorf("env: close session: %w", err)
			}
		}
		if err := e.root.Close(); err != nil && e.closeErr == nil {
			e.closeErr = fmt.Errorf("env: close root space: %w", err)
		}
	})
	return e.closeErr
}
