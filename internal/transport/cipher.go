package transport

import (
	"crypto/rc4"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20"
)

// NewArc4 builds the legacy wire cipher keyed directly with the session key.
func NewArc4(key []byte) (Cipher, error) {
	return rc4.NewCipher(key)
}

// NewChaCha builds the ChaCha wire cipher. The key is the SHA-256 digest of
// the session key; the server sends a 16-byte nonce of which the trailing
// 4 bytes (the initial counter) are dropped.
func NewChaCha(sessionKey, nonce []byte) (Cipher, error) {
	key := sha256.Sum256(sessionKey)
	if len(nonce) > chacha20.NonceSize {
		nonce = nonce[:len(nonce)-4]
	}
	return chacha20.NewUnauthenticatedCipher(key[:], nonce)
}
