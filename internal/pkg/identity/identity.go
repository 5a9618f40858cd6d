// Package identity models user ids that are either numeric (legacy users table)
// or opaque strings (UUID-keyed profiles table). An id is parsed once at the
// boundary and carries its representation with it.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrKindMismatch  = errors.New("user id kind does not match the active user store")
)

// Kind is the representation of a UserID.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNumeric
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// UserID is a tagged variant. The zero value is not a valid id.
type UserID struct {
	kind Kind
	num  uint64
	str  string
}

// Numeric builds an id for the relational users table.
func Numeric(id uint64) UserID {
	return UserID{kind: KindNumeric, num: id}
}

// Opaque builds an id for the profiles table.
func Opaque(id string) UserID {
	return UserID{kind: KindOpaque, str: strings.ToLower(strings.TrimSpace(id))}
}

// FromUUID builds an opaque id from a UUID.
func FromUUID(id uuid.UUID) UserID {
	return Opaque(id.String())
}

// Parse reads an id from external input. All-digit strings are numeric ids,
// anything else must be a UUID.
func Parse(raw string) (UserID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return UserID{}, fmt.Errorf("%w: empty", ErrInvalidUserID)
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		if n == 0 {
			return UserID{}, fmt.Errorf("%w: zero", ErrInvalidUserID)
		}
		return Numeric(n), nil
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	return FromUUID(u), nil
}

func (id UserID) Kind() Kind { return id.kind }

func (id UserID) IsZero() bool { return id.kind == KindUnknown }

// Uint returns the numeric value. It fails for opaque ids.
func (id UserID) Uint() (uint64, error) {
	if id.kind != KindNumeric {
		return 0, fmt.Errorf("%w: expected numeric id, got %s %q", ErrKindMismatch, id.kind, id.String())
	}
	return id.num, nil
}

// UUID returns the UUID value. It fails for numeric ids.
func (id UserID) UUID() (uuid.UUID, error) {
	if id.kind != KindOpaque {
		return uuid.Nil, fmt.Errorf("%w: expected opaque id, got %s %q", ErrKindMismatch, id.kind, id.String())
	}
	u, err := uuid.Parse(id.str)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidUserID, id.str)
	}
	return u, nil
}

func (id UserID) String() string {
	switch id.kind {
	case KindNumeric:
		return strconv.FormatUint(id.num, 10)
	case KindOpaque:
		return id.str
	default:
		return ""
	}
}

// Key is a stable, kind-qualified string used for cache keys and event markers.
func (id UserID) Key() string {
	switch id.kind {
	case KindNumeric:
		return "n:" + id.String()
	case KindOpaque:
		return "s:" + id.str
	default:
		return ""
	}
}

func (id UserID) Equal(other UserID) bool {
	return id.kind == other.kind && id.num == other.num && id.str == other.str
}

// MarshalJSON encodes numeric ids as JSON numbers and opaque ids as strings.
func (id UserID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case KindNumeric:
		return []byte(strconv.FormatUint(id.num, 10)), nil
	case KindOpaque:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

func (id *UserID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = UserID{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		s = raw
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
