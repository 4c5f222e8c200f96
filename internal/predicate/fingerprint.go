package predicate

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

// Fingerprint hashes a path over a canonical serialization: each predicate's
// variant followed by its params in sorted key order. Two paths that are Equal
// always produce the same fingerprint, whatever order their params maps were
// built in.
func Fingerprint(p Path) [32]byte {
	h := sha256.New()
	for _, pred := range p {
		h.Write([]byte(pred.Variant))
		h.Write([]byte{0})
		keys := make([]string, 0, len(pred.Params))
		for k := range pred.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{1})
			h.Write([]byte(pred.Params[k]))
			h.Write([]byte{1})
		}
		h.Write([]byte{2})
	}
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// Seed returns the first 8 bytes of the fingerprint as an unsigned integer,
// used to seed deterministic chain naming.
func Seed(p Path) uint64 {
	sum := Fingerprint(p)
	return binary.BigEndian.Uint64(sum[:8])
}

// ShortHash returns the first 8 hex characters of the fingerprint for
// diagnostics and reports.
func ShortHash(p Path) string {
	sum := Fingerprint(p)
	return fmt.Sprintf("%x", sum[:4])
}
