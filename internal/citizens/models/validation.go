package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"census/internal/citizens/graph"
	id "census/pkg/domain"
	dErrors "census/pkg/domain-errors"
)

// Tags shared between struct validation of whole citizens and per-field
// validation of patches.
const (
	textTag      = "min=1,max=256"
	nonNegTag    = "gte=0"
	genderTag    = "oneof=male female"
	relativesTag = "dive,gte=0"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError names the first field of a record that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return "invalid field: " + e.Field
}

// Detail renders the field and the rule it broke.
func (e *FieldError) Detail() string {
	if e.Reason == "" {
		return e.Error()
	}
	return e.Error() + " (" + e.Reason + ")"
}

// ValidateFields checks the structural validity of a single citizen: bounded
// non-empty strings, non-negative integers, a known gender and a real birth
// date strictly before now. Only the first offending field is reported.
func ValidateFields(c *Citizen, now time.Time) *FieldError {
	if c == nil {
		return &FieldError{Field: "citizen", Reason: "required"}
	}
	if err := validate.Struct(c); err != nil {
		return toFieldError(err, "")
	}
	if err := validateBirthDate(c.BirthDate, now); err != nil {
		return err
	}
	return nil
}

func validateBirthDate(d BirthDate, now time.Time) *FieldError {
	if d.IsZero() {
		return &FieldError{Field: "birth_date", Reason: "required"}
	}
	if !d.Before(now) {
		return &FieldError{Field: "birth_date", Reason: "must be in the past"}
	}
	return nil
}

func validateVar(field string, value any, tag string) *FieldError {
	if err := validate.Var(value, tag); err != nil {
		return toFieldError(err, field)
	}
	return nil
}

func toFieldError(err error, field string) *FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		name := field
		if name == "" {
			name = fe.Field()
		}
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &FieldError{Field: name, Reason: reason}
	}
	if field == "" {
		field = "citizen"
	}
	return &FieldError{Field: field, Reason: err.Error()}
}

// ValidateImport is the mutuality validator: a pure predicate over a candidate
// batch. The stages run in order and the first failure rejects the whole batch:
//
//  1. citizen ids are unique
//  2. every record is structurally valid
//  3. the relatives relation is symmetric
//
// Self edges are symmetric by construction and accepted.
func ValidateImport(citizens []*Citizen, now time.Time) error {
	seen := make(map[id.CitizenID]struct{}, len(citizens))
	for i, c := range citizens {
		if c == nil {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid field: citizens[%d]", i))
		}
		if _, dup := seen[c.CitizenID]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate citizen id: %d", c.CitizenID))
		}
		seen[c.CitizenID] = struct{}{}
	}

	for _, c := range citizens {
		if fe := ValidateFields(c, now); fe != nil {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("citizen %d: %s", c.CitizenID, fe.Detail()))
		}
	}

	adjacency := make(graph.Adjacency, len(citizens))
	for _, c := range citizens {
		adjacency[c.CitizenID] = c.Relatives
	}
	if err := graph.CheckMutual(adjacency); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return nil
}
