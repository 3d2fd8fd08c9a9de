// Package sharehash generates the short public identifiers used in share links.
//
// A hash is 16 bytes from a cryptographically secure source, digested with
// BLAKE2b-256 and truncated to 12 hex characters (48 bits). That is plenty
// for a public, non-adversarial link space. It must not be used to authorise
// anything.
package sharehash

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	// Length is the number of hex characters in a hash.
	Length = 12

	entropyBytes = 16
)

// Generator produces share hashes. Callers depend on this interface so tests
// can force collisions.
type Generator interface {
	Generate() (string, error)
}

// Random is the production Generator.
type Random struct {
	source io.Reader
}

// New returns a Random backed by crypto/rand.
func New() *Random {
	return &Random{source: rand.Reader}
}

// NewFromReader returns a Random that draws entropy from r.
func NewFromReader(r io.Reader) *Random {
	return &Random{source: r}
}

// Generate returns a fresh 12-character lowercase hex hash.
func (g *Random) Generate() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", fmt.Errorf("sharehash: reading entropy: %w", err)
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])[:Length], nil
}

// Valid reports whether s has the shape of a share hash.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
