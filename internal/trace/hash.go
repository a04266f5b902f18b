package trace

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/csarwi/publishom/internal/durable"
)

// ComputeTraceHash computes the deterministic hash of a canonical trace
// encoding: sha256 over the bytes, hex-encoded. The input is assumed to come
// from PublishTrace.CanonicalJSON().
func ComputeTraceHash(canonicalEncoding []byte) string {
	if len(canonicalEncoding) == 0 {
		return ""
	}
	sum := sha256.Sum256(canonicalEncoding)
	return hex.EncodeToString(sum[:])
}

// WriteFile atomically writes the canonical encoding of t to path and
// returns its hash.
func WriteFile(path string, t PublishTrace) (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	if err := durable.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}
