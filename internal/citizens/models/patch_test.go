package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "census/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func TestCitizenPatchValidate(t *testing.T) {
	t.Run("accepts valid fields", func(t *testing.T) {
		p := &CitizenPatch{
			Name:      ptr("1"),
			Apartment: ptr(int64(0)),
			Gender:    ptr(GenderFemale),
			BirthDate: ptr(NewBirthDate(2000, time.January, 1)),
			Relatives: ptr([]id.CitizenID{}),
		}
		assert.Nil(t, p.Validate(now))
	})

	tests := []struct {
		name  string
		patch *CitizenPatch
		field string
	}{
		{"empty name", &CitizenPatch{Name: ptr("")}, "name"},
		{"empty building", &CitizenPatch{Building: ptr("")}, "building"},
		{"negative apartment", &CitizenPatch{Apartment: ptr(int64(-1))}, "apartment"},
		{"bad gender", &CitizenPatch{Gender: ptr(Gender("abc"))}, "gender"},
		{"future birth date", &CitizenPatch{BirthDate: ptr(NewBirthDate(2030, time.January, 1))}, "birth_date"},
		{"negative relative", &CitizenPatch{Relatives: ptr([]id.CitizenID{1, -1})}, "relatives"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := tt.patch.Validate(now)
			require.NotNil(t, fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestCitizenPatchApply(t *testing.T) {
	t.Run("merges updates over the pre-update view", func(t *testing.T) {
		before := citizen(3, 1, 2)
		p := &CitizenPatch{Town: ptr("Saratov"), Relatives: ptr([]id.CitizenID{2, 2, 5})}

		after := p.Apply(before)

		assert.Equal(t, "Saratov", after.Town)
		assert.Equal(t, before.Name, after.Name)
		assert.Equal(t, []id.CitizenID{2, 5}, after.Relatives)
		assert.Equal(t, "Москва", before.Town, "input must not be modified")
		assert.Equal(t, []id.CitizenID{1, 2}, before.Relatives)
	})

	t.Run("applying twice equals applying once", func(t *testing.T) {
		p := &CitizenPatch{Name: ptr("Петров"), Apartment: ptr(int64(12))}
		once := p.Apply(citizen(1))
		twice := p.Apply(once)
		assert.Equal(t, once, twice)
	})

	t.Run("without relatives keeps the list", func(t *testing.T) {
		after := (&CitizenPatch{Name: ptr("x")}).Apply(citizen(1, 4))
		assert.Equal(t, []id.CitizenID{4}, after.Relatives)
	})
}

func TestCitizenPatchEmpty(t *testing.T) {
	var nilPatch *CitizenPatch
	assert.True(t, nilPatch.IsEmpty())
	assert.True(t, (&CitizenPatch{}).IsEmpty())
	assert.False(t, (&CitizenPatch{Relatives: ptr([]id.CitizenID{})}).IsEmpty())
}
