// Package fileid derives stable keys for imported catalog source files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "src:"

// SourceKey returns a stable key for the given path. The path is cleaned first,
// so "/a/./b" and "/a/b/" share a key with "/a/b". Import bookkeeping rows are
// stored under this key.
func SourceKey(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:16])
}
