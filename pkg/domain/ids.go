package domain

import (
	"strconv"
	"strings"

	dErrors "census/pkg/domain-errors"
)

// ImportID identifies one import snapshot. Allocated ids start at 1.
type ImportID int64

// CitizenID identifies a citizen within a single import. It is not unique
// across imports.
type CitizenID int64

// ParseImportID validates and returns an ImportID.
// Returns a CodeInvalidInput error if the string is not a non-negative integer.
// Zero parses even though it is never allocated; lookups report it missing.
func ParseImportID(s string) (ImportID, error) {
	v, err := parseNonNegative(s, "import_id")
	if err != nil {
		return 0, err
	}
	return ImportID(v), nil
}

// ParseCitizenID validates and returns a CitizenID.
// Returns a CodeInvalidInput error if the string is not a non-negative integer.
func ParseCitizenID(s string) (CitizenID, error) {
	v, err := parseNonNegative(s, "citizen_id")
	if err != nil {
		return 0, err
	}
	return CitizenID(v), nil
}

func parseNonNegative(s, field string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" must be an integer")
	}
	if v < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" must not be negative")
	}
	return v, nil
}

func (id ImportID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id CitizenID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// CitizenIDsToInt64 converts ids for drivers that only understand int64 arrays.
func CitizenIDsToInt64(ids []CitizenID) []int64 {
	out := make([]int64, len(ids))
	for i, v := range ids {
		out[i] = int64(v)
	}
	return out
}

// CitizenIDsFromInt64 is the inverse of CitizenIDsToInt64.
func CitizenIDsFromInt64(values []int64) []CitizenID {
	out := make([]CitizenID, len(values))
	for i, v := range values {
		out[i] = CitizenID(v)
	}
	return out
}
