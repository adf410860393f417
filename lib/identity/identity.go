// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// AddressPrefix is the human-readable part and separator that
	// begins every address.
	AddressPrefix = "aleo1"

	// AddressLength is the total length of an encoded address,
	// including the prefix.
	AddressLength = 63

	bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
)

// ErrInvalidAddress is wrapped by every error returned from
// [ParseAddress].
var ErrInvalidAddress = errors.New("invalid address")

// Address is a validated participant account address. The zero value
// is not a valid address.
type Address struct {
	encoded string
}

// ParseAddress validates s and returns it as an Address. Only the
// prefix, length, and character set are checked; the bech32 checksum
// belongs to the coordinator.
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, AddressPrefix) {
		return Address{}, fmt.Errorf("%w: %q does not start with %q", ErrInvalidAddress, s, AddressPrefix)
	}
	if len(s) != AddressLength {
		return Address{}, fmt.Errorf("%w: %q is %d characters, want %d", ErrInvalidAddress, s, len(s), AddressLength)
	}
	for index, character := range s[len(AddressPrefix):] {
		if !strings.ContainsRune(bech32Charset, character) {
			return Address{}, fmt.Errorf("%w: %q has invalid character %q at offset %d",
				ErrInvalidAddress, s, character, len(AddressPrefix)+index)
		}
	}
	return Address{encoded: s}, nil
}

// MustParseAddress is ParseAddress for constants in tests and
// defaults. Panics on an invalid address.
func MustParseAddress(s string) Address {
	address, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return address
}

// String returns the encoded address.
func (a Address) String() string { return a.encoded }

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool { return a.encoded == "" }

// MarshalText implements encoding.TextMarshaler so addresses encode as
// plain strings in YAML, TOML, JSON, and CBOR.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.encoded), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, validating the
// input with ParseAddress.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Role is a participant's function in the ceremony.
type Role uint8

const (
	// Contributor submits contributions to chunks.
	Contributor Role = iota + 1
	// Verifier validates submitted contributions.
	Verifier
)

// ErrUnknownRole is returned by [ParseRole] for role tokens other than
// "contributor" and "verifier".
var ErrUnknownRole = errors.New("unknown participant role")

// ParseRole converts a coordinator role token to a Role.
func ParseRole(token string) (Role, error) {
	switch token {
	case "contributor":
		return Contributor, nil
	case "verifier":
		return Verifier, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, token)
	}
}

// String returns the coordinator's token for the role.
func (r Role) String() string {
	switch r {
	case Contributor:
		return "contributor"
	case Verifier:
		return "verifier"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r != Contributor && r != Verifier {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Participant is a ceremony participant: an address acting in a role.
type Participant struct {
	Address Address `json:"address"`
	Role    Role    `json:"role"`
}

// NewContributor returns a contributor participant for address.
func NewContributor(address Address) Participant {
	return Participant{Address: address, Role: Contributor}
}

// NewVerifier returns a verifier participant for address.
func NewVerifier(address Address) Participant {
	return Participant{Address: address, Role: Verifier}
}

// CoordinatorID returns the identifier the coordinator uses for this
// participant in logs and round state files: "<address>.<role>".
func (p Participant) CoordinatorID() string {
	return p.Address.String() + "." + p.Role.String()
}

// String returns the coordinator id.
func (p Participant) String() string { return p.CoordinatorID() }
