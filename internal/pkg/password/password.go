package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
)

func Hash(plain string) (string, error) {
	if plain == "" {
		return "", appErr.ErrInvalid
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns ErrUnauthorized on mismatch so callers never leak which
// half of a credential was wrong.
func Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
		return appErr.ErrUnauthorized
	}
	return err
}
