package auth

import "bytes"

// Wire-crypt plugin names as they appear in op_crypt.
const (
	WireCryptArc4   = "Arc4"
	WireCryptChaCha = "ChaCha"
)

const tagKnownPlugins = 3

var chachaPrefix = []byte("ChaCha\x00")

// GuessWireCrypt inspects the keys blob from op_cond_accept and picks the
// encryption plugin. The blob is a tag/length/value sequence; tag 3 lists
// the server's known plugins with plugin-specific data appended. A ChaCha
// entry carries the session nonce after a NUL-terminated name. Anything
// unrecognized (or malformed) falls back to Arc4, which needs no nonce.
func GuessWireCrypt(keys []byte) (plugin string, nonce []byte) {
	params := map[byte][]byte{}
	for i := 0; i+2 <= len(keys); {
		tag := keys[i]
		ln := int(keys[i+1])
		i += 2
		if i+ln > len(keys) {
			break
		}
		params[tag] = keys[i : i+ln]
		i += ln
	}
	if v, ok := params[tagKnownPlugins]; ok && bytes.HasPrefix(v, chachaPrefix) {
		return WireCryptChaCha, v[len(chachaPrefix):]
	}
	return WireCryptArc4, nil
}
