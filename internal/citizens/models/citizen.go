package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	id "census/pkg/domain"
	"census/pkg/platform/dedupe"
)

// BirthDateLayout is the wire format of birth dates. Parsing also accepts
// single-digit days and months ("8.8.2019").
const (
	BirthDateLayout = "02.01.2006"
	birthDateParse  = "2.1.2006"
)

// Gender is one of the two values accepted by the registry.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// IsValid reports whether g is an accepted gender value.
func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

// BirthDate is a calendar date without time of day. The zero value is invalid.
type BirthDate struct {
	time.Time
}

// NewBirthDate builds a BirthDate at UTC midnight.
func NewBirthDate(year int, month time.Month, day int) BirthDate {
	return BirthDate{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseBirthDate parses DD.MM.YYYY and rejects dates that do not exist in the
// calendar (31.02.2000, 40.14.1000).
func ParseBirthDate(s string) (BirthDate, error) {
	t, err := time.Parse(birthDateParse, s)
	if err != nil {
		return BirthDate{}, fmt.Errorf("parse birth date %q: %w", s, err)
	}
	return BirthDate{t}, nil
}

// Before reports whether the date is strictly before the calendar day of now.
func (d BirthDate) Before(now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.Time.Before(today)
}

func (d BirthDate) String() string {
	return d.Format(BirthDateLayout)
}

func (d BirthDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *BirthDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBirthDate(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Citizen is one person inside one import. Relatives are stored as plain
// citizen ids of the same import, never as references, so the relative graph
// is an arena keyed by CitizenID.
//
// Invariants (per import):
//   - CitizenID is unique
//   - r in c.Relatives implies c in r.Relatives
type Citizen struct {
	CitizenID id.CitizenID   `json:"citizen_id" validate:"gte=0"`
	Town      string         `json:"town" validate:"min=1,max=256"`
	Street    string         `json:"street" validate:"min=1,max=256"`
	Building  string         `json:"building" validate:"min=1,max=256"`
	Apartment int64          `json:"apartment" validate:"gte=0"`
	Name      string         `json:"name" validate:"min=1,max=256"`
	BirthDate BirthDate      `json:"birth_date" validate:"-"`
	Gender    Gender         `json:"gender" validate:"oneof=male female"`
	Relatives []id.CitizenID `json:"relatives" validate:"dive,gte=0"`
}

// Clone returns a deep copy so callers can hand citizens across lock
// boundaries without sharing the relatives slice.
func (c *Citizen) Clone() *Citizen {
	if c == nil {
		return nil
	}
	out := *c
	out.Relatives = append(make([]id.CitizenID, 0, len(c.Relatives)), c.Relatives...)
	return &out
}

// NormalizeRelatives collapses duplicate relative ids, keeping the first
// occurrence, and guarantees a non-nil slice for JSON output.
func (c *Citizen) NormalizeRelatives() {
	c.Relatives = normalizeRelatives(c.Relatives)
}

func normalizeRelatives(ids []id.CitizenID) []id.CitizenID {
	if ids == nil {
		return []id.CitizenID{}
	}
	return dedupe.Stable(ids)
}

// Import is an immutable-at-creation batch of citizens sharing one id.
type Import struct {
	ID        id.ImportID
	Citizens  []*Citizen
	CreatedAt time.Time
}

// Presents is one row of the birthdays view: the number of relatives'
// birthdays that fall in a month for CitizenID.
type Presents struct {
	CitizenID id.CitizenID `json:"citizen_id"`
	Presents  int          `json:"presents"`
}

// TownAgeStats holds age percentiles for one town, rounded to two decimals.
type TownAgeStats struct {
	Town string  `json:"town"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P99  float64 `json:"p99"`
}
