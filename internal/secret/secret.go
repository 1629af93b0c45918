// Package secret hashes and verifies the shared secrets of the admin account:
// the password, the PIN and the out-of-band recovery code.
package secret

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and checks bcrypt hashes at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's range fall back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash. An empty or malformed hash never matches.
func (h *Hasher) Verify(hash, plain string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// VerifyOptional is Verify over a possibly absent hash.
func (h *Hasher) VerifyOptional(hash *string, plain string) bool {
	if hash == nil {
		return false
	}
	return h.Verify(*hash, plain)
}

// IsHash reports whether s looks like a bcrypt hash this package can verify.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// ErrTooLong is returned by CheckLength for secrets bcrypt would truncate.
var ErrTooLong = errors.New("secret must be at most 72 bytes")

// CheckLength rejects secrets longer than bcrypt accepts.
func CheckLength(plain string) error {
	if len(plain) > 72 {
		return ErrTooLong
	}
	return nil
}
