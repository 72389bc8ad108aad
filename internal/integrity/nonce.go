package integrity

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

// NonceHeader carries the per-route nonce on forwarded work requests.
const NonceHeader = "X-Veil-Nonce"

var ErrBadNonce = errors.New("nonce missing or mismatched")

// NonceStore holds one random nonce per route path, created on first
// use and kept for the process lifetime. Forwarded work requests carry
// the nonce so the internal endpoints cannot be invoked directly from
// outside.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]string
}

func NewNonceStore() *NonceStore {
	return &NonceStore{nonces: make(map[string]string)}
}

// Mint returns the nonce for a route path, creating it on first use.
func (s *NonceStore) Mint(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nonces[path]; ok {
		return n
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	n := hex.EncodeToString(buf)
	s.nonces[path] = n
	return n
}

// Verify checks a presented nonce against the one minted for the path,
// in constant time. A path that never minted a nonce rejects everything.
func (s *NonceStore) Verify(path, nonce string) error {
	s.mu.Lock()
	want, ok := s.nonces[path]
	s.mu.Unlock()

	if !ok || nonce == "" {
		return ErrBadNonce
	}
	if !hmac.Equal([]byte(want), []byte(nonce)) {
		return ErrBadNonce
	}
	return nil
}
