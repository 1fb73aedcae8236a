// Package token issues the opaque secrets used for verification and
// unsubscribe links.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Length is the fixed length of an issued token in characters.
const Length = 43 // 32 random bytes, base64 URL-safe without padding

// Issuer produces cryptographically random, URL-safe tokens. The zero value
// is ready to use.
type Issuer struct{}

// Issue returns a new token. Tokens are effectively unique across the store's
// lifetime (256 bits of entropy). If the system entropy source fails the
// process cannot safely mint secrets, so Issue panics rather than returning
// a weaker value.
func (Issuer) Issue() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("token: entropy source unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
