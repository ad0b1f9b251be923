package chain

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashIdentifier returns the 0x-prefixed Keccak-256 of a vehicle identifier
// (plate, chassis or engine number). The bytes are hashed as given so the result
// matches keccak256(toUtf8Bytes(s)) computed by wallet clients.
func HashIdentifier(s string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
