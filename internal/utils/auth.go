package utils

import (
	"crypto/rand"
	"fmt"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// largest multiple of len(codeAlphabet) that fits in a byte; higher bytes are redrawn
const codeCutoff = 256 - 256%len(codeAlphabet)

// GenerateRandomString returns n characters drawn uniformly from [A-Za-z0-9].
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeCutoff {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
