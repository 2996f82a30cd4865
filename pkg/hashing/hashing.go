// Package hashing provides the file-hash collaborator the rule-key layer
// delegates to: hash(path) -> digest as a pure function of file contents at
// call time. The default stack is a sha256 hasher wrapped by a compute-once
// memo, optionally backed by a sqlite store keyed on (path, mtime, size) and
// invalidated by filesystem notifications.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DigestLen is the byte length of a content digest.
const DigestLen = sha256.Size

// Digest is a fixed-length content digest. Equality is byte equality.
type Digest [DigestLen]byte

// String returns the lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != DigestLen {
		return Digest{}, fmt.Errorf("invalid digest %q: want %d bytes, got %d", s, DigestLen, len(raw))
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// FileHasher hashes a project-relative file path to its content digest.
type FileHasher interface {
	Hash(path string) (Digest, error)
}

// Sha256Hasher hashes file contents with sha256. Paths are resolved against
// Root.
type Sha256Hasher struct {
	// Root is the project root paths are relative to.
	Root string
}

// NewSha256Hasher returns a hasher rooted at root.
func NewSha256Hasher(root string) *Sha256Hasher {
	return &Sha256Hasher{Root: root}
}

// Hash implements FileHasher.
func (h *Sha256Hasher) Hash(path string) (Digest, error) {
	f, err := os.Open(filepath.Join(h.Root, filepath.FromSlash(path)))
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}
