package utils

import (
	"crypto/rand"
)

// alphanumeric is the alphabet for login tokens (62 characters)
var alphanumeric = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

const (
	defaultTokenLength = 32
)

// NewToken returns a random 32 character alphanumeric login token
func NewToken() string {
	return RandomAlphanumeric(defaultTokenLength)
}

// RandomAlphanumeric returns n random characters from [0-9A-Za-z].
// Bytes that would bias the distribution are rejected and redrawn.
func RandomAlphanumeric(n int) string {
	if n <= 0 {
		return ""
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		// crypto/rand.Read never returns an error on supported platforms
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= 256-(256%len(alphanumeric)) {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
