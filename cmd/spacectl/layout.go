package main

import (
	"fmt"
	"log/slog"
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
	layoutAnons []string
	layoutFiles []string
)

func init() {
	cmd := newLayoutCmd()
	cmd.Flags().StringArrayVar(&layoutAnons, "anon", nil, "Attach an anonymous dataspace of SIZE (repeatable, K/M/G suffixes)")
	cmd.Flags().StringArrayVar(&layoutFiles, "file", nil, "Attach a file, optionally at PATH:OFFSET (repeatable)")
	rootCmd.AddCommand(cmd)
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Attach dataspaces into a fresh root space and print the region table",
		Long: `The layout command builds a live process environment, performs the
requested attaches against the real host, and prints the resulting region
table.

Example:
  spacectl layout --anon 64K --anon 1M
  spacectl layout --file /etc/hostname --anon 16K --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLayout(layoutAnons, layoutFiles)
		},
	}
}

// regionRow is one printed line of a region table.
type regionRow struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Size    string `json:"size"`
	Backing string `json:"backing"`
}

func regionRows(regions []space.Region) []regionRow {
	rows := make([]regionRow, 0, len(regions))
	for _, r := range regions {
		rows = append(rows, regionRow{
			Start:   fmt.Sprintf("%#x", uintptr(r.Start)),
			End:     fmt.Sprintf("%#x", uintptr(r.End())),
			Size:    args.FormatSize(r.Size),
			Backing: backingName(r.Backing),
		})
	}
	return rows
}

func backingName(ds dataspace.Dataspace) string {
	switch b := ds.(type) {
	case *dataspace.File:
		return "file:" + b.Name()
	case *dataspace.Anon:
		return "anon:" + b.Name()
	case *space.Space:
		return fmt.Sprintf("reservation:%s", args.FormatSize(b.Size()))
	default:
		return "unknown"
	}
}

func printRegions(title string, regions []space.Region) error {
	rows := regionRows(regions)
	if jsonOut {
		return printJSON(map[string]interface{}{
			"table":   title,
			"regions": rows,
			"count":   len(rows),
		})
	}
	printInfo("\n%s (%d regions):\n", title, len(rows))
	for _, row := range rows {
		printInfo("  [%s, %s)  %8s  %s\n", row.Start, row.End, row.Size, row.Backing)
	}
	return nil
}

func runLayout(anons, files []string) error {
	e, err := env.New(parent.NewLocal(parent.LocalOptions{}), env.Options{})
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}
	defer e.Close()

	for _, spec := range anons {
		size, err := args.ParseSize(spec)
		if err != nil {
			return fmt.Errorf("bad --anon size %q: %w", spec, err)
		}
		dsCap, err := e.RAM().Alloc(size)
		if err != nil {
			return fmt.Errorf("allocate %s: %w", spec, err)
		}
		ds, ok := session.Deref[dataspace.Dataspace](dsCap)
		if !ok {
			return fmt.Errorf("allocate %s: capability is not a dataspace", spec)
		}
		addr, err := e.RM().Attach(ds, space.AttachOpts{})
		if err != nil {
			return fmt.Errorf("attach %s: %w", spec, err)
		}
		slog.Debug("attached anonymous dataspace", "size", spec, "addr", fmt.Sprintf("%#x", uintptr(addr)))
	}

	for _, spec := range files {
		path, offset, err := splitFileSpec(spec)
		if err != nil {
			return err
		}
		ds, err := dataspace.OpenFile(path, false)
		if err != nil {
			return err
		}
		defer ds.Close()
		addr, err := e.RM().Attach(ds, space.AttachOpts{Offset: offset})
		if err != nil {
			return fmt.Errorf("attach %s: %w", path, err)
		}
		slog.Debug("attached file", "path", path, "offset", offset, "addr", fmt.Sprintf("%#x", uintptr(addr)))
	}

	return printRegions("Root space", e.RM().Regions())
}

// splitFileSpec splits "PATH" or "PATH:OFFSET". Windows-style paths are not a
// concern; the module is Linux-only.
func splitFileSpec(spec string) (string, int64, error) {
	path, offStr, ok := strings.Cut(spec, ":")
	if !ok {
		return spec, 0, nil
	}
	off, err := strconv.ParseInt(offStr, 0, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad --file offset in %q: %w", spec, err)
	}
	return path, off, nil
}
