// Package args implements the session-argument string codec used between a
// process and its parent: comma-separated key=value pairs, with K/M/G size
// suffixes on numeric values ("ram_quota=8K, size=4M").
//
// A router forwards argument strings it does not understand byte-for-byte,
// so Parse never rejects unknown keys; only structurally malformed pairs
// error.
package args

import (
	"fmt"
	"strconv"
	"strings"
)

// Args holds the decoded pairs of one session-argument string. Lookups on a
// nil Args return the caller's default.
type Args map[string]string

// Parse decodes a session-argument string. The empty string decodes to empty
// Args. A pair without '=' or with an empty key is malformed.
func Parse(s string) (Args, error) {
	a := Args{}
	if strings.TrimSpace(s) == "" {
		return a, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("args: malformed pair %q", pair)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("args: empty key in pair %q", pair)
		}
		a[k] = strings.TrimSpace(v)
	}
	return a, nil
}

// String returns the value of key, or def when the key is absent.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Size returns the value of key decoded as a byte count with an optional
// K/M/G suffix. Absent keys and undecodable values yield def.
func (a Args) Size(key string, def uintptr) uintptr {
	v, ok := a[key]
	if !ok {
		return def
	}
	n, err := ParseSize(v)
	if err != nil {
		return def
	}
	return n
}

// ParseSize decodes a byte count with an optional K/M/G suffix (upper or
// lower case).
func ParseSize(s string) (uintptr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("args: empty size")
	}
	mult := uintptr(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("args: bad size %q: %w", s, err)
	}
	return uintptr(n) * mult, nil
}

// FormatSize encodes a byte count in the shortest exact suffix form: "8K"
// for 8192, "4M" for 4194304, plain digits otherwise.
func FormatSize(n uintptr) string {
	switch {
	case n != 0 && n%(1<<30) == 0:
		return strconv.FormatUint(uint64(n>>30), 10) + "G"
	case n != 0 && n%(1<<20) == 0:
		return strconv.FormatUint(uint64(n>>20), 10) + "M"
	case n != 0 && n%(1<<10) == 0:
		return strconv.FormatUint(uint64(n>>10), 10) + "K"
	default:
		return strconv.FormatUint(uint64(n), 10)
	}
}
