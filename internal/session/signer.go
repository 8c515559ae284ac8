package session

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Signer authenticates session keys carried in cookies with a keyed
// BLAKE2b-256 MAC, so a client cannot pick another visitor's session key.
type Signer struct {
	key []byte
}

func NewSigner(secret string) *Signer {
	k := []byte(secret)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &Signer{key: k}
}

func (s *Signer) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(s.mac(value))
}

// Verify returns the value of a signed token produced by Sign.
func (s *Signer) Verify(token string) (string, bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 {
		return "", false
	}
	value, sig := token[:i], token[i+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if subtle.ConstantTimeCompare(got, s.mac(value)) != 1 {
		return "", false
	}
	return value, true
}

func (s *Signer) mac(value string) []byte {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// Only reachable with a key over 64 bytes, which NewSigner prevents.
		panic(err)
	}
	h.Write([]byte(value))
	return h.Sum(nil)
}
