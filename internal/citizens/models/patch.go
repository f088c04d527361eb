package models

import (
	"time"

	id "census/pkg/domain"
)

// CitizenPatch is a partial update of one citizen. A nil field is left
// untouched. Relatives, when set, replaces the whole list; a non-nil empty
// slice clears it.
type CitizenPatch struct {
	Town      *string
	Street    *string
	Building  *string
	Apartment *int64
	Name      *string
	BirthDate *BirthDate
	Gender    *Gender
	Relatives *[]id.CitizenID
}

// IsEmpty reports whether the patch sets no field.
func (p *CitizenPatch) IsEmpty() bool {
	return p == nil || len(p.Fields()) == 0
}

// HasRelatives reports whether the patch replaces the relatives list.
func (p *CitizenPatch) HasRelatives() bool {
	return p != nil && p.Relatives != nil
}

// NewRelatives returns the deduplicated replacement list. Only meaningful
// when HasRelatives is true.
func (p *CitizenPatch) NewRelatives() []id.CitizenID {
	if !p.HasRelatives() {
		return nil
	}
	return normalizeRelatives(*p.Relatives)
}

// Fields lists the wire names of the fields the patch sets.
func (p *CitizenPatch) Fields() []string {
	if p == nil {
		return nil
	}
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Town != nil, "town")
	add(p.Street != nil, "street")
	add(p.Building != nil, "building")
	add(p.Apartment != nil, "apartment")
	add(p.Name != nil, "name")
	add(p.BirthDate != nil, "birth_date")
	add(p.Gender != nil, "gender")
	add(p.Relatives != nil, "relatives")
	return fields
}

// Validate applies the import-time field rules to every field the patch
// sets. Whether relatives exist in the import is checked by the store.
func (p *CitizenPatch) Validate(now time.Time) *FieldError {
	checks := []struct {
		set   bool
		field string
		value func() any
		tag   string
	}{
		{p.Town != nil, "town", func() any { return *p.Town }, textTag},
		{p.Street != nil, "street", func() any { return *p.Street }, textTag},
		{p.Building != nil, "building", func() any { return *p.Building }, textTag},
		{p.Apartment != nil, "apartment", func() any { return *p.Apartment }, nonNegTag},
		{p.Name != nil, "name", func() any { return *p.Name }, textTag},
		{p.Gender != nil, "gender", func() any { return string(*p.Gender) }, genderTag},
		{p.Relatives != nil, "relatives", func() any { return *p.Relatives }, relativesTag},
	}
	for _, c := range checks {
		if !c.set {
			continue
		}
		if fe := validateVar(c.field, c.value(), c.tag); fe != nil {
			return fe
		}
	}
	if p.BirthDate != nil {
		if fe := validateBirthDate(*p.BirthDate, now); fe != nil {
			return fe
		}
	}
	return nil
}

// ApplyAttributes writes the non-relative fields of p onto c in place.
func (p *CitizenPatch) ApplyAttributes(c *Citizen) {
	if p.Town != nil {
		c.Town = *p.Town
	}
	if p.Street != nil {
		c.Street = *p.Street
	}
	if p.Building != nil {
		c.Building = *p.Building
	}
	if p.Apartment != nil {
		c.Apartment = *p.Apartment
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.BirthDate != nil {
		c.BirthDate = *p.BirthDate
	}
	if p.Gender != nil {
		c.Gender = *p.Gender
	}
}

// Apply returns a copy of c with every field of p applied, relatives
// included. This is the view returned to the caller of a patch: the
// pre-update record merged with the updates.
func (p *CitizenPatch) Apply(c *Citizen) *Citizen {
	out := c.Clone()
	p.ApplyAttributes(out)
	if p.HasRelatives() {
		out.Relatives = p.NewRelatives()
	}
	return out
}
