package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// UUIDGenerator mints random (v4) UUIDs for calls, chats, stories and
// uploads, where ordering does not matter.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

func (*UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("idgen: uuid: %w", err)
	}
	return id.String(), nil
}

// Validate accepts only the canonical 36 character v4 form this generator
// produces.
func (*UUIDGenerator) Validate(id string) (bool, string) {
	if len(id) != 36 {
		return false, fmt.Sprintf("want 36 characters, got %d", len(id))
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, err.Error()
	}
	if v := parsed.Version(); v != 4 {
		return false, fmt.Sprintf("want version 4, got %d", v)
	}
	return true, ""
}
