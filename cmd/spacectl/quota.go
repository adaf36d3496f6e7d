package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/substrateos/spacekit/env"
	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space/parent"
	"github.com/substrateos/spacekit/space/ram"
)

var (
	quotaInitial string
	quotaUpgrade string
	quotaAllocs  []string
)

func init() {
	cmd := newQuotaCmd()
	cmd.Flags().StringVar(&quotaInitial, "quota", "16K", "Initial RAM session quota")
	cmd.Flags().StringVar(&quotaUpgrade, "upgrade", "8K", "Quota increment per upgrade")
	cmd.Flags().StringArrayVar(&quotaAllocs, "alloc", nil, "Allocation to attempt, in order (repeatable)")
	rootCmd.AddCommand(cmd)
}

func newQuotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Drive the quota-retry protocol against a tight RAM session",
		Long: `The quota command opens a RAM session with a deliberately small quota and
performs the requested allocations through the retrying client, reporting
each attempt, every upgrade the parent saw, and the outcome.

Example:
  spacectl quota --quota 16K --upgrade 8K --alloc 12K --alloc 12K --alloc 12K`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuota(quotaInitial, quotaUpgrade, quotaAllocs)
		},
	}
}

func runQuota(quotaSpec, upgradeSpec string, allocSpecs []string) error {
	quota, err := args.ParseSize(quotaSpec)
	if err != nil {
		return fmt.Errorf("bad --quota %q: %w", quotaSpec, err)
	}
	upgrade, err := args.ParseSize(upgradeSpec)
	if err != nil {
		return fmt.Errorf("bad --upgrade %q: %w", upgradeSpec, err)
	}

	upstream := parent.NewLocal(parent.LocalOptions{})
	e, err := env.New(upstream, env.Options{
		RAMQuota: quota,
		RAM:      ram.Options{UpgradeAmount: upgrade},
	})
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}
	defer e.Close()

	type attempt struct {
		Size     string `json:"size"`
		OK       bool   `json:"ok"`
		Error    string `json:"error,omitempty"`
		Upgrades int    `json:"upgrades_so_far"`
	}
	var attempts []attempt

	printInfo("\nRAM session quota %s, upgrade step %s\n\n", args.FormatSize(quota), args.FormatSize(upgrade))
	for _, spec := range allocSpecs {
		size, err := args.ParseSize(spec)
		if err != nil {
			return fmt.Errorf("bad --alloc %q: %w", spec, err)
		}
		before := upstream.Stats().UpgradeCalls
		_, allocErr := e.RAM().Alloc(size)
		after := upstream.Stats().UpgradeCalls

		a := attempt{Size: args.FormatSize(size), OK: allocErr == nil, Upgrades: after}
		if allocErr != nil {
			a.Error = allocErr.Error()
		}
		attempts = append(attempts, a)

		switch {
		case allocErr == nil && after > before:
			printInfo("  alloc %-6s ok   (after %d upgrade)\n", a.Size, after-before)
		case allocErr == nil:
			printInfo("  alloc %-6s ok\n", a.Size)
		default:
			printInfo("  alloc %-6s FAIL %v\n", a.Size, allocErr)
		}
	}

	stats := upstream.Stats()
	if jsonOut {
		return printJSON(map[string]interface{}{
			"quota":    args.FormatSize(quota),
			"upgrade":  args.FormatSize(upgrade),
			"attempts": attempts,
			"upgrades": stats.UpgradeCalls,
		})
	}
	printInfo("\nParent saw %d upgrade request(s)\n", stats.UpgradeCalls)
	return nil
}
