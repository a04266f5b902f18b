package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fingerprint is the lowercase hex SHA-256 digest of an included set's
// identity lines.
type Fingerprint string

// String returns the digest.
func (f Fingerprint) String() string {
	return string(f)
}

// ticksAtUnixEpoch is the number of 100ns ticks between 0001-01-01 and
// 1970-01-01 (UTC).
const ticksAtUnixEpoch = 621355968000000000

// Ticks converts t to 100ns intervals since 0001-01-01T00:00:00Z.
// Precision below 100ns is truncated.
func Ticks(t time.Time) int64 {
	t = t.UTC()
	return ticksAtUnixEpoch + t.Unix()*10_000_000 + int64(t.Nanosecond()/100)
}

// FingerprintHasher computes deterministic fingerprints for included sets.
//
// The fingerprint covers, per file:
//
//	<topFolder>\<relative path with '\' separators>|<size>|<modTimeTicks>
//
// Lines are sorted as plain byte strings and joined with "\n" before
// hashing, so the digest does not depend on the order files are supplied in.
// File contents are not read: a rewrite that keeps size and modification
// time is invisible.
type FingerprintHasher struct{}

// NewFingerprintHasher creates a new FingerprintHasher.
func NewFingerprintHasher() *FingerprintHasher {
	return &FingerprintHasher{}
}

// Lines returns the sorted identity lines for set.
func (h *FingerprintHasher) Lines(set *IncludedSet) []string {
	if set == nil {
		return []string{}
	}
	lines := make([]string, 0, len(set.Files))
	for _, f := range set.Files {
		var b strings.Builder
		b.WriteString(set.TopFolder)
		b.WriteByte('\\')
		b.WriteString(strings.ReplaceAll(f.RelativePath, "/", `\`))
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(f.Size, 10))
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(Ticks(f.ModTime), 10))
		lines = append(lines, b.String())
	}
	sort.Strings(lines)
	return lines
}

// Compute returns the fingerprint of set. The empty set has the digest of
// the empty byte string.
func (h *FingerprintHasher) Compute(set *IncludedSet) Fingerprint {
	sum := sha256.Sum256([]byte(strings.Join(h.Lines(set), "\n")))
	return Fingerprint(hex.EncodeToString(sum[:]))
}
