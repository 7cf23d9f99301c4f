package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the byte width of an account address.
const AddressSize = 32

// Address identifies an account, a program or a signer.
type Address [AddressSize]byte

// ZeroAddress is the unset sentinel. It never equals a presented feed.
var ZeroAddress Address

// IsZero reports whether a is the unset sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String renders the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short renders the first 8 hex characters, for logs.
func (a Address) Short() string {
	return a.String()[:8]
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a 64-character hex address. An optional 0x prefix is
// accepted.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != AddressSize*2 {
		return a, fmt.Errorf("address must be %d hex characters, got %d", AddressSize*2, len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("invalid address: %w", err)
	}
	return a, nil
}

// AddressFromBytes copies b into an Address. b must be exactly 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// NamedAddress derives a stable address from a human-readable name. Used
// for signer identities and feeds created from the CLI.
func NamedAddress(name string) Address {
	return Address(sha256.Sum256([]byte("oraclegate:name:" + name)))
}

// pdaMarker terminates the derivation preimage.
const pdaMarker = "ProgramDerivedAddress"

// DeriveAddress computes the program-derived address for seeds under
// programID: sha256(seeds... || programID || marker).
func DeriveAddress(programID Address, seeds ...[]byte) Address {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// ResolveAddress accepts a hex address or, failing that, a name passed to
// NamedAddress. Empty input is an error.
func ResolveAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, fmt.Errorf("address is required")
	}
	if a, err := ParseAddress(s); err == nil {
		return a, nil
	}
	return NamedAddress(s), nil
}
