package pipeline

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"github.com/veilhq/veil/internal/models"
)

// scrypt parameters; keylen matches the 64-byte digests already stored.
const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
)

func newSalt() string {
	return uuid.NewString()
}

func hashUID(uid, salt string) (string, error) {
	key, err := scrypt.Key([]byte(uid), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("hash uid: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// SameUser reports whether uid is the submitter that created the
// record, by recomputing the salted hash and comparing in constant
// time. The submitter's identity itself is never stored.
func SameUser(c *models.Confession, uid string) bool {
	h, err := hashUID(uid, c.UIDSalt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h), []byte(c.UIDHash)) == 1
}
