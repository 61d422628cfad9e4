// Package hash provides streaming content hashing for artifacts.
//
// gda identifies every archive by the SHA-256 digest of its bytes. The lockfile
// records that digest at resolve time and pull compares the downloaded file
// against it before anything is extracted. Hashing reads in fixed-size chunks
// so multi-gigabyte artifacts never have to fit in memory.
package hash

import (
	_ "crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// chunkSize bounds the memory used per hashing call.
const chunkSize = 32 * 1024

// Hasher provides an abstraction for content hashing operations.
type Hasher interface {
	// HashFile computes the hex digest of the file at the given path.
	HashFile(path string) (string, error)

	// HashReader computes the hex digest of everything read from r.
	HashReader(r io.Reader) (string, error)
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashFile computes the SHA-256 hash of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	sum, err := h.HashReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return sum, nil
}

// HashReader computes the SHA-256 hash of the stream.
func (h *SHA256Hasher) HashReader(r io.Reader) (string, error) {
	digester := digest.SHA256.Digester()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(digester.Hash(), r, buf); err != nil {
		return "", err
	}
	return digester.Digest().Encoded(), nil
}

// Validate reports whether sum is a well-formed SHA-256 hex digest.
func Validate(sum string) error {
	if err := digest.NewDigestFromEncoded(digest.SHA256, sum).Validate(); err != nil {
		return fmt.Errorf("invalid sha256 digest %q: %w", sum, err)
	}
	return nil
}

// Short returns the first 16 characters of a digest for display.
func Short(sum string) string {
	if len(sum) <= 16 {
		return sum
	}
	return sum[:16]
}

// FakeHasher implements Hasher with deterministic hashes for testing.
type FakeHasher struct {
	hashes map[string]string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the hash for a specific path (for testing).
func (h *FakeHasher) SetHash(path, hash string) {
	h.hashes[path] = hash
}

// HashFile returns the predetermined hash for the given path.
func (h *FakeHasher) HashFile(path string) (string, error) {
	if hash, ok := h.hashes[path]; ok {
		return hash, nil
	}
	// Default hash if not set
	return "fakehash", nil
}

// HashReader drains r and returns the default fake hash.
func (h *FakeHasher) HashReader(r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return "fakehash", nil
}
