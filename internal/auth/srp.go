// Package auth implements the client side of Firebird's SRP-6a
// authentication (Srp and Srp256 plugins) and the wire-encryption key
// negotiation that follows it. The server-side half of the exchange is kept
// in this package too so the handshake can be verified offline.
//
// See http://srp.stanford.edu/design.html
package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

const (
	// PluginSrp256 hashes the proof with SHA-256, PluginSrp with SHA-1.
	// Servers are offered both, preferring Srp256.
	PluginSrp    = "Srp"
	PluginSrp256 = "Srp256"

	// PluginList is the client_plugin_list offered during connect.
	PluginList = "Srp256,Srp"

	keySize  = 128
	saltSize = 32
)

var (
	prime = mustHex("E67D2E994B2F900C3F41F08F5BB2627ED0D49EE1FE767A52EFCD565CD6E768812C3E1E9CE8F0A8BEA6CB13CD29DDEBF7A96D4A93B55D488DF099A15C89DCB0640738EB2CBDD9A8F7BAB561AB1B0DC1C6CDABF303264A08D1BCA932D1F1EE428B619D970F342ABA9A65793B8B2F041AE5364350C16F735F56ECBCA87BD57B29E7")
	gen   = big.NewInt(2)
	kMul  = mustDec("1277432915985975349439481660349303019122249719989")
)

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("auth: bad hex constant")
	}
	return v
}

func mustDec(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("auth: bad decimal constant")
	}
	return v
}

// pad trims the big-endian form of v down to the SRP key size. Values
// shorter than the key size are used as-is.
func pad(v *big.Int) []byte {
	buf := v.Bytes()
	if len(buf) > keySize {
		buf = buf[len(buf)-keySize:]
	}
	return buf
}

func sha1Of(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func bigSHA1(v *big.Int) []byte {
	return sha1Of(v.Bytes())
}

// scramble derives u = H(pad(A), pad(B)).
func scramble(pubA, pubB *big.Int) *big.Int {
	return new(big.Int).SetBytes(sha1Of(pad(pubA), pad(pubB)))
}

// userHash derives x = H(salt, H(user ":" password)).
func userHash(salt []byte, user, password string) *big.Int {
	inner := sha1Of([]byte(user), []byte(":"), []byte(password))
	return new(big.Int).SetBytes(sha1Of(salt, inner))
}

// ClientSeed generates the client ephemeral key pair (A, a).
func ClientSeed() (pub, priv *big.Int, err error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	priv, err = rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: seed: %w", err)
	}
	pub = new(big.Int).Exp(gen, priv, prime)
	return pub, priv, nil
}

// clientSession computes the shared session key on the client side:
// K = H((B - k*g^x) ^ (a + u*x)).
func clientSession(user, password string, salt []byte, pubA, pubB, privA *big.Int) []byte {
	u := scramble(pubA, pubB)
	x := userHash(salt, user, password)
	gx := new(big.Int).Exp(gen, x, prime)
	kgx := new(big.Int).Mul(kMul, gx)
	kgx.Mod(kgx, prime)
	diff := new(big.Int).Sub(pubB, kgx)
	diff.Mod(diff, prime)
	ux := new(big.Int).Mul(u, x)
	ux.Mod(ux, prime)
	aux := new(big.Int).Add(privA, ux)
	aux.Mod(aux, prime)
	secret := diff.Exp(diff, aux, prime)
	return bigSHA1(secret)
}

// ClientProof computes the proof M = H(H(N) xor H(g), H(I), s, A, B, K) and
// returns it with the session key. The plugin picks the outer hash.
func ClientProof(user, password string, salt []byte, pubA, pubB, privA *big.Int, plugin string) (proof, sessionKey []byte, err error) {
	sessionKey = clientSession(user, password, salt, pubA, pubB, privA)

	n1 := new(big.Int).SetBytes(bigSHA1(prime))
	n2 := new(big.Int).SetBytes(bigSHA1(gen))
	n3 := n1.Exp(n1, n2, prime)
	n4 := new(big.Int).SetBytes(sha1Of([]byte(user)))

	switch plugin {
	case PluginSrp:
		proof = sha1Of(n3.Bytes(), n4.Bytes(), salt, pubA.Bytes(), pubB.Bytes(), sessionKey)
	case PluginSrp256:
		h := sha256.New()
		h.Write(n3.Bytes())
		h.Write(n4.Bytes())
		h.Write(salt)
		h.Write(pubA.Bytes())
		h.Write(pubB.Bytes())
		h.Write(sessionKey)
		proof = h.Sum(nil)
	default:
		return nil, nil, fmt.Errorf("auth: unknown plugin %q", plugin)
	}
	return proof, sessionKey, nil
}

// PublicHex renders a public key the way the wire carries it: lowercase hex
// with no leading zero padding.
func PublicHex(pub *big.Int) []byte {
	return []byte(fmt.Sprintf("%x", pub))
}

// ParsePublicHex reads a server public key sent as hex text.
func ParsePublicHex(b []byte) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(string(b)), 16)
	if !ok {
		return nil, fmt.Errorf("auth: malformed server public key")
	}
	return v, nil
}

// The server half of the exchange, exercised by the handshake tests.

func verifier(user, password string, salt []byte) *big.Int {
	x := userHash(salt, user, password)
	return new(big.Int).Exp(gen, x, prime)
}

func serverSeed(v *big.Int) (pub, priv *big.Int, err error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	priv, err = rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, nil, err
	}
	gb := new(big.Int).Exp(gen, priv, prime)
	kv := new(big.Int).Mul(kMul, v)
	kv.Mod(kv, prime)
	pub = kv.Add(kv, gb)
	pub.Mod(pub, prime)
	return pub, priv, nil
}

func serverSession(user, password string, salt []byte, pubA, pubB, privB *big.Int) []byte {
	u := scramble(pubA, pubB)
	v := verifier(user, password, salt)
	vu := v.Exp(v, u, prime)
	avu := vu.Mul(pubA, vu)
	avu.Mod(avu, prime)
	secret := avu.Exp(avu, privB, prime)
	return bigSHA1(secret)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
