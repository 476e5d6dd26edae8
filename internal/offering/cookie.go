package offering

import "time"

// Cookie is opaque to the server: spec.md §9 ("Stateless cookies") — simply
// synthesize (expiration, zero bytes) on every call and accept any input.
type Cookie struct {
	Expiration    time.Time
	EncryptedData [12]byte
}

// NewCookie returns a fresh cookie expiring 5 days from now with a
// 12-byte zeroed EncryptedData field (spec.md §4.4 step 2).
func NewCookie() Cookie {
	return Cookie{Expiration: time.Now().Add(5 * 24 * time.Hour)}
}
