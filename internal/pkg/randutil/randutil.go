package randutil

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// String draws n characters uniformly from alphabet using crypto/rand.
func String(n int, alphabet string) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", fmt.Errorf("invalid random string request: n=%d alphabet=%d", n, len(alphabet))
	}
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

func AlphanumericString(n int) (string, error) {
	return String(n, Alphanumeric)
}
