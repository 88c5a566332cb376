// Package id defines TypeID-based identity types for the persisted records
// of the matching core.
//
// Every record uses a single ID struct whose prefix names the record kind.
// IDs are K-sortable (UUIDv7-based) and render as "prefix_suffix".
// Presence sessions are the exception: they are addressed by a short
// shareable code (see package presence), not by a TypeID.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record kind encoded in a TypeID.
type Prefix string

// Prefix constants for every record kind.
const (
	PrefixEdge  Prefix = "edge"  // Directed interest edge (like / match)
	PrefixGrant Prefix = "grant" // Entitlement grant
	PrefixRound Prefix = "round" // VibeLock round
	PrefixEvent Prefix = "evt"   // Published notification event
)

// ID is the primary identifier type for all records.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g. "edge_01h2xcejqtf2nbrexx3vqjhp41").
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// EdgeID identifies an interest edge (prefix: "edge"). A match is
// addressed by the ID of the edge that was pending when it formed.
type EdgeID = ID

// GrantID identifies an entitlement grant (prefix: "grant").
type GrantID = ID

// RoundID identifies a VibeLock round (prefix: "round").
type RoundID = ID

// EventID identifies a published notification event (prefix: "evt").
type EventID = ID

// NewEdgeID generates a new edge ID.
func NewEdgeID() ID { return New(PrefixEdge) }

// NewGrantID generates a new grant ID.
func NewGrantID() ID { return New(PrefixGrant) }

// NewRoundID generates a new round ID.
func NewRoundID() ID { return New(PrefixRound) }

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// ParseEdgeID parses s and validates the "edge" prefix.
func ParseEdgeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEdge) }

// ParseGrantID parses s and validates the "grant" prefix.
func ParseGrantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixGrant) }

// ParseRoundID parses s and validates the "round" prefix.
func ParseRoundID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRound) }

// ParseEventID parses s and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
