package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID returns a time-ordered UUID v7, falling back to v4
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsEmpty() bool {
	return id == ""
}

// Keys of the two matrix axes and of correction runs
type (
	RunID      ID
	FeatureKey ID
	SampleKey  ID
)

func (id RunID) String() string      { return ID(id).String() }
func (id FeatureKey) String() string { return ID(id).String() }
func (id SampleKey) String() string  { return ID(id).String() }

// NewRunID creates an identifier for one correction run
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID accepts the UUID form produced by NewRunID
func ParseRunID(s string) (RunID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid run ID %q: %w", s, err)
	}
	return RunID(u.String()), nil
}

// ParseSampleKey trims a sample header cell; blank cells are rejected
func ParseSampleKey(s string) (SampleKey, error) {
	key, err := parseKey("sample", s)
	return SampleKey(key), err
}

// ParseFeatureKey trims a feature name cell; blank cells are rejected
func ParseFeatureKey(s string) (FeatureKey, error) {
	key, err := parseKey("feature", s)
	return FeatureKey(key), err
}

func parseKey(axis, s string) (string, error) {
	key := strings.TrimSpace(s)
	if key == "" {
		return "", fmt.Errorf("%s key cannot be empty", axis)
	}
	return key, nil
}
