package model

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

// Identifier errors.
var (
	// ErrEmptyIdentifier is returned when the identifier is empty.
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")
	// ErrInvalidUsername is returned when a username contains whitespace or control characters.
	ErrInvalidUsername = errors.New("invalid username format")
	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address format")
)

// IdentifierKind distinguishes the two identifier families the scanner probes.
type IdentifierKind string

const (
	// KindUsername is a handle checked against username catalogs.
	KindUsername IdentifierKind = "username"
	// KindEmail is an email address checked against email catalogs.
	KindEmail IdentifierKind = "email"
)

// Identifier is an immutable value object representing a username or email
// being checked for presence. It validates and normalizes the raw input once
// so every probe sees the same canonical form.
type Identifier struct {
	value string
	kind  IdentifierKind
}

// NewUsername creates an Identifier of kind username.
// The value is trimmed; empty values and values containing whitespace or
// control characters are rejected.
func NewUsername(value string) (Identifier, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Identifier{}, ErrEmptyIdentifier
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return Identifier{}, ErrInvalidUsername
		}
	}
	return Identifier{value: trimmed, kind: KindUsername}, nil
}

// NewEmail creates an Identifier of kind email.
// The value is trimmed and lower-cased, then validated with net/mail.
// Lower-casing the whole address matches how presence catalogs index
// accounts; sites treating local parts case-sensitively are rare enough
// that a uniform canonical form wins.
func NewEmail(value string) (Identifier, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return Identifier{}, ErrEmptyIdentifier
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil {
		return Identifier{}, ErrInvalidEmail
	}
	// ParseAddress accepts "Name <user@host>" forms; keep only the address.
	return Identifier{value: addr.Address, kind: KindEmail}, nil
}

// MustNewUsername creates a username Identifier or panics if invalid.
// Use only for known-valid values in tests or initialization.
func MustNewUsername(value string) Identifier {
	id, err := NewUsername(value)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical identifier value.
func (i Identifier) String() string {
	return i.value
}

// Kind returns the identifier kind.
func (i Identifier) Kind() IdentifierKind {
	return i.kind
}

// IsZero returns true if this is a zero value (empty) Identifier.
func (i Identifier) IsZero() bool {
	return i.value == ""
}

// LocalPart returns the part before '@' for email identifiers.
// It returns the whole value for usernames, so callers can pivot an email
// scan onto username catalogs without special-casing the kind.
func (i Identifier) LocalPart() string {
	if i.kind != KindEmail {
		return i.value
	}
	at := strings.LastIndex(i.value, "@")
	if at <= 0 {
		return i.value
	}
	return i.value[:at]
}

// Values returns the canonical string values of the given identifiers.
func Values(ids []Identifier) []string {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return values
}
