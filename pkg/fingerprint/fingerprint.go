package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Generate creates a deterministic fingerprint for a set of fields.
// encoding/json writes map keys in sorted order, so equal maps always hash
// to the same value regardless of insertion order. Values that cannot be
// marshalled fall back to their %v form.
func Generate(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", data))
	}
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:])
}

// Short returns the first n hex characters of Generate, for use in keys.
func Short(data map[string]any, n int) string {
	fp := Generate(data)
	if n <= 0 || n > len(fp) {
		return fp
	}
	return fp[:n]
}
