package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// AddressSize is the width of an account address in bytes.
const AddressSize = 32

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account or record in the store.
type Address [AddressSize]byte

// DeriveAddress returns the fixed address owned by program under label.
// Derived addresses have no private key: only the owning program can
// authorize value leaving them.
func DeriveAddress(program, label string) Address {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte(program))

	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// ParseAddress decodes a hex encoded address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressSize {
		return addr, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, AddressSize, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
