// Package roundid generates identifiers for lottery rounds: UUIDv7 values
// encoded as 26-character lowercase Crockford base32 strings, so that ids
// sort in creation order.
package roundid

import (
	"encoding/base32"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded id.
const Length = 26

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generator produces round ids. The zero value reads randomness from
// crypto/rand.
type Generator struct {
	// Rand overrides the randomness source, for deterministic tests.
	Rand io.Reader
}

// Generate returns a new id.
func (g Generator) Generate() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.Rand != nil {
		id, err = uuid.NewV7FromReader(g.Rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return "", fmt.Errorf("generate round id: %w", err)
	}
	return Encode(id), nil
}

// Generate returns a new id using crypto/rand.
func Generate() string {
	id, err := Generator{}.Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// Encode renders a UUID as a round id.
func Encode(id uuid.UUID) string {
	return encoding.EncodeToString(id[:])
}

// Parse decodes a round id back into its UUID.
func Parse(s string) (uuid.UUID, error) {
	if len(s) != Length {
		return uuid.Nil, fmt.Errorf("round id must be exactly %d characters, got %d", Length, len(s))
	}
	raw, err := encoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("round id %q: %w", s, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("round id %q: %w", s, err)
	}
	if id.Version() != 7 {
		return uuid.Nil, fmt.Errorf("round id %q: version %d, want 7", s, id.Version())
	}
	return id, nil
}

// Validate reports whether s is a well-formed round id.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// Time returns the millisecond timestamp embedded in a round id.
func Time(s string) (time.Time, error) {
	id, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms), nil
}
