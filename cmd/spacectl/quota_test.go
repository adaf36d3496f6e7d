//go:build linux

package main

import "testing"

func TestQuotaRetrySucceedsAfterUpgrade(t *testing.T) {
	jsonOut = false
	quiet = false

	// 16K quota, 12K + 12K: the second allocation exhausts the session and
	// must come back as a transparent success after one upgrade.
	out, err := captureOutput(t, func() error {
		return runQuota("16K", "8K", []string{"12K", "12K"})
	})
	if err != nil {
		t.Fatalf("quota failed: %v", err)
	}
	assertContains(t, out, []string{
		"alloc 12K    ok",
		"after 1 upgrade",
		"Parent saw 1 upgrade request(s)",
	})
}

func TestQuotaHardExhaustion(t *testing.T) {
	jsonOut = false
	quiet = false

	// 4K quota with a 1K upgrade step cannot ever fit 16K: the single
	// retry must give up rather than loop.
	out, err := captureOutput(t, func() error {
		return runQuota("4K", "1K", []string{"16K"})
	})
	if err != nil {
		t.Fatalf("quota command itself should not fail: %v", err)
	}
	assertContains(t, out, []string{"FAIL", "quota exhausted after upgrade"})
}

func TestQuotaJSON(t *testing.T) {
	jsonOut = true
	defer func() { jsonOut = false }()

	out, err := captureOutput(t, func() error {
		return runQuota("16K", "8K", []string{"8K"})
	})
	if err != nil {
		t.Fatalf("quota failed: %v", err)
	}
	assertJSON(t, out)
	assertContains(t, out, []string{`"upgrades": 0`})
}
