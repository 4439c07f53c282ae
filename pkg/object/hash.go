package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashObject computes the SHA-1 digest of the canonical envelope
// "<type> <len>\0<data>", the identity of a stored object.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether h looks like a 40-character hex SHA-1 digest.
func (h Hash) Valid() bool {
	if len(h) != 40 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// ValidPrefix reports whether s is usable as a hash lookup prefix: at least
// 4 hex characters and no longer than a full hash.
func ValidPrefix(s string) bool {
	if len(s) < 4 || len(s) > 40 {
		return false
	}
	padded := s
	if len(padded)%2 == 1 {
		padded += "0"
	}
	_, err := hex.DecodeString(padded)
	return err == nil
}
