package pkguid

import "math/rand"

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Alphanumeric generates fixed-length strings drawn uniformly from [A-Za-z0-9].
//
// It exists for collision avoidance (for example temporary file names) and is
// not a security boundary: the output is not suitable for secrets or tokens.
type Alphanumeric struct {
	length int
}

// NewAlphanumeric returns a generator producing strings of the given length.
// Non-positive lengths fall back to 20.
func NewAlphanumeric(length int) *Alphanumeric {
	if length < 1 {
		length = 20
	}

	return &Alphanumeric{length: length}
}

// Len returns the length of generated strings.
func (a *Alphanumeric) Len() int {
	return a.length
}

// Generate returns a new random alphanumeric string. It is safe for concurrent use.
func (a *Alphanumeric) Generate() string {
	b := make([]byte, a.length)
	for i := range b {
		b[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}

	return string(b)
}

// IsAlphanumeric reports whether s is non-empty and only contains [A-Za-z0-9].
func IsAlphanumeric(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}

	return true
}
