package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/substrateos/spacekit/env"
	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
	"github.com/substrateos/spacekit/space/parent"
	"github.com/substrateos/spacekit/space/session"
)

var (
	reserveSize     string
	reserveAttaches []string
)

func init() {
	cmd := newReserveCmd()
	cmd.Flags().StringVar(&reserveSize, "size", "1M", "Reservation size (K/M/G suffixes)")
	cmd.Flags().StringArrayVar(&reserveAttaches, "attach", nil, "Attach an anonymous dataspace inside the reservation as OFFSET:SIZE (repeatable)")
	rootCmd.AddCommand(cmd)
}

func newReserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve",
		Short: "Create a nested region-manager session and attach inside it",
		Long: `The reserve command requests a region-manager session through the local
router, populates the reservation at the given offsets, and prints both
region tables together with the base+offset address translation.

Example:
  spacectl reserve --size 1M --attach 0:16K --attach 0x40000:64K`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReserve(reserveSize, reserveAttaches)
		},
	}
}

func runReserve(sizeSpec string, attaches []string) error {
	size, err := args.ParseSize(sizeSpec)
	if err != nil {
		return fmt.Errorf("bad --size %q: %w", sizeSpec, err)
	}

	e, err := env.New(parent.NewLocal(parent.LocalOptions{}), env.Options{})
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}
	defer e.Close()

	rmCap, err := e.Parent().Session(space.ServiceName, "size="+args.FormatSize(size))
	if err != nil {
		return fmt.Errorf("open region-manager session: %w", err)
	}
	defer e.Parent().Close(rmCap)
	sub, ok := session.Deref[*space.Space](rmCap)
	if !ok {
		return fmt.Errorf("region-manager capability is not a space")
	}

	type translation struct {
		Offset string `json:"offset"`
		Addr   string `json:"addr"`
		Size   string `json:"size"`
	}
	var translations []translation

	for _, spec := range attaches {
		offStr, sizeStr, ok := strings.Cut(spec, ":")
		if !ok {
			return fmt.Errorf("bad --attach %q: want OFFSET:SIZE", spec)
		}
		off, err := strconv.ParseUint(offStr, 0, 64)
		if err != nil {
			return fmt.Errorf("bad --attach offset in %q: %w", spec, err)
		}
		asize, err := args.ParseSize(sizeStr)
		if err != nil {
			return fmt.Errorf("bad --attach size in %q: %w", spec, err)
		}
		dsCap, err := e.RAM().Alloc(asize)
		if err != nil {
			return fmt.Errorf("allocate %s: %w", sizeStr, err)
		}
		ds, ok := session.Deref[dataspace.Dataspace](dsCap)
		if !ok {
			return fmt.Errorf("allocate %s: capability is not a dataspace", sizeStr)
		}
		addr, err := sub.Attach(ds, space.AttachOpts{At: space.Addr(off), Fixed: true})
		if err != nil {
			return fmt.Errorf("attach at +%#x: %w", off, err)
		}
		translations = append(translations, translation{
			Offset: fmt.Sprintf("%#x", off),
			Addr:   fmt.Sprintf("%#x", uintptr(addr)),
			Size:   args.FormatSize(asize),
		})
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"reservation": map[string]interface{}{
				"size": args.FormatSize(sub.Size()),
				"base": fmt.Sprintf("%#x", uintptr(sub.Base())),
			},
			"translations": translations,
			"root":         regionRows(e.RM().Regions()),
			"nested":       regionRows(sub.Regions()),
		})
	}

	printInfo("\nReservation: %s", args.FormatSize(sub.Size()))
	if base := sub.Base(); base != 0 {
		printInfo(" at base %#x", uintptr(base))
	} else {
		printInfo(" (not attached; no inner attaches requested)")
	}
	printInfo("\n")
	for _, tr := range translations {
		printInfo("  +%-10s -> %s  (%s)\n", tr.Offset, tr.Addr, tr.Size)
	}
	if err := printRegions("Nested space", sub.Regions()); err != nil {
		return err
	}
	return printRegions("Root space", e.RM().Regions())
}
