package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	id "census/pkg/domain"
)

// citizenFields lists the wire fields of a citizen in output order.
var citizenFields = []string{
	"citizen_id", "town", "street", "building", "apartment",
	"name", "birth_date", "gender", "relatives",
}

// ImportRequest is the body of POST /imports. Citizens are kept raw so that
// missing, null and mistyped fields can be reported by name.
type ImportRequest struct {
	Citizens []map[string]json.RawMessage `json:"citizens"`
}

// Parse decodes every citizen of the request. It checks representation only
// (presence, non-null, JSON types); ValidateImport checks content.
func (r *ImportRequest) Parse() ([]*Citizen, error) {
	if r.Citizens == nil {
		return nil, &FieldError{Field: "citizens", Reason: "required"}
	}
	if err := r.checkUniqueIDs(); err != nil {
		return nil, err
	}
	out := make([]*Citizen, 0, len(r.Citizens))
	for i, raw := range r.Citizens {
		c, err := DecodeCitizen(raw)
		if err != nil {
			return nil, fmt.Errorf("citizens[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// checkUniqueIDs looks at the raw citizen_id values so a repeated id is
// reported ahead of any field error. Ids that do not decode are left to
// DecodeCitizen.
func (r *ImportRequest) checkUniqueIDs() error {
	seen := make(map[int64]struct{}, len(r.Citizens))
	for _, raw := range r.Citizens {
		msg, ok := raw["citizen_id"]
		if !ok || isNull(msg) {
			continue
		}
		var v int64
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("duplicate citizen id: %d", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// DecodeCitizen decodes one complete citizen. Every field is required and
// unknown fields are rejected.
func DecodeCitizen(raw map[string]json.RawMessage) (*Citizen, error) {
	if raw == nil {
		return nil, &FieldError{Field: "citizen", Reason: "must be an object"}
	}
	if err := rejectUnknown(raw, citizenFields); err != nil {
		return nil, err
	}
	c := &Citizen{}
	for _, field := range citizenFields {
		msg, ok := raw[field]
		if !ok || isNull(msg) {
			return nil, &FieldError{Field: field, Reason: "required"}
		}
		if err := decodeCitizenField(c, field, msg); err != nil {
			return nil, err
		}
	}
	c.NormalizeRelatives()
	return c, nil
}

// PatchRequest is the body of PATCH /imports/{import_id}/citizens/{citizen_id}.
type PatchRequest map[string]json.RawMessage

// Parse decodes the fields present in the request. A request without any
// patchable field yields an empty patch, whatever else it carries. Otherwise
// citizen_id, unknown fields and explicit nulls are rejected.
func (r PatchRequest) Parse() (*CitizenPatch, error) {
	patchable := citizenFields[1:]
	p := &CitizenPatch{}
	if !slices.ContainsFunc(patchable, func(field string) bool {
		_, ok := r[field]
		return ok
	}) {
		return p, nil
	}
	if err := rejectUnknown(r, patchable); err != nil {
		return nil, err
	}
	for _, field := range patchable {
		msg, ok := r[field]
		if !ok {
			continue
		}
		if isNull(msg) {
			return nil, &FieldError{Field: field, Reason: "must not be null"}
		}
		if err := decodePatchField(p, field, msg); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func decodeCitizenField(c *Citizen, field string, msg json.RawMessage) error {
	var err error
	switch field {
	case "citizen_id":
		var v int64
		err = json.Unmarshal(msg, &v)
		c.CitizenID = id.CitizenID(v)
	case "town":
		err = json.Unmarshal(msg, &c.Town)
	case "street":
		err = json.Unmarshal(msg, &c.Street)
	case "building":
		err = json.Unmarshal(msg, &c.Building)
	case "apartment":
		err = json.Unmarshal(msg, &c.Apartment)
	case "name":
		err = json.Unmarshal(msg, &c.Name)
	case "birth_date":
		err = json.Unmarshal(msg, &c.BirthDate)
	case "gender":
		err = json.Unmarshal(msg, &c.Gender)
	case "relatives":
		c.Relatives, err = decodeRelatives(msg)
	}
	if err != nil {
		return &FieldError{Field: field, Reason: "malformed value"}
	}
	return nil
}

func decodePatchField(p *CitizenPatch, field string, msg json.RawMessage) error {
	var err error
	switch field {
	case "town":
		p.Town = new(string)
		err = json.Unmarshal(msg, p.Town)
	case "street":
		p.Street = new(string)
		err = json.Unmarshal(msg, p.Street)
	case "building":
		p.Building = new(string)
		err = json.Unmarshal(msg, p.Building)
	case "apartment":
		p.Apartment = new(int64)
		err = json.Unmarshal(msg, p.Apartment)
	case "name":
		p.Name = new(string)
		err = json.Unmarshal(msg, p.Name)
	case "birth_date":
		p.BirthDate = new(BirthDate)
		err = json.Unmarshal(msg, p.BirthDate)
	case "gender":
		p.Gender = new(Gender)
		err = json.Unmarshal(msg, p.Gender)
	case "relatives":
		var relatives []id.CitizenID
		relatives, err = decodeRelatives(msg)
		p.Relatives = &relatives
	}
	if err != nil {
		return &FieldError{Field: field, Reason: "malformed value"}
	}
	return nil
}

// decodeRelatives rejects null elements, which encoding/json would silently
// turn into zero.
func decodeRelatives(msg json.RawMessage) ([]id.CitizenID, error) {
	var raw []*int64
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}
	out := make([]id.CitizenID, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			return nil, fmt.Errorf("null relative id")
		}
		out = append(out, id.CitizenID(*v))
	}
	return out, nil
}

func rejectUnknown(raw map[string]json.RawMessage, allowed []string) error {
	var unknown []string
	for key := range raw {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return &FieldError{Field: unknown[0], Reason: "not allowed"}
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}
