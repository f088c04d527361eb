// Package aggregate computes the read-only views of an import: birthday
// presents per month and age percentiles per town. Both are pure reducers over
// a full snapshot of citizens.
package aggregate

import (
	"math"
	"slices"
	"time"

	"census/internal/citizens/models"
	id "census/pkg/domain"
	"census/pkg/platform/dedupe"
)

// Percentile fractions reported by AgePercentiles.
const (
	P50 = 0.50
	P75 = 0.75
	P99 = 0.99
)

// Months is the birthdays view keyed by month number. It always holds all
// twelve months; encoding/json writes the keys as "1".."12".
type Months map[int][]models.Presents

// Birthdays counts, for every month, how many presents each citizen buys: one
// per relative born in that month. The count is driven by the birthday
// owner's relatives list; in a symmetric graph this equals counting the
// receiver's relatives born in that month.
//
// Within a month, entries are ordered by the first time the receiver was
// seen while walking citizens in import order.
func Birthdays(citizens []*models.Citizen) Months {
	out := make(Months, 12)
	for month := 1; month <= 12; month++ {
		out[month] = []models.Presents{}
	}

	index := make(map[int]map[id.CitizenID]int, 12)
	for _, c := range citizens {
		month := int(c.BirthDate.Month())
		slots, ok := index[month]
		if !ok {
			slots = make(map[id.CitizenID]int)
			index[month] = slots
		}
		for _, r := range dedupe.Stable(c.Relatives) {
			i, seen := slots[r]
			if !seen {
				i = len(out[month])
				slots[r] = i
				out[month] = append(out[month], models.Presents{CitizenID: r})
			}
			out[month][i].Presents++
		}
	}
	return out
}

// Age returns full years between birth and now. The year difference is
// decremented when this year's birthday has not happened yet. A 29 February
// birthday counts as passed from 1 March in non-leap years.
func Age(birth models.BirthDate, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// Percentile returns the p-th fraction (0..1) of an ascending slice using
// linear interpolation between closest ranks: rank p*(N-1). It returns 0 for
// an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	p = math.Min(math.Max(p, 0), 1)
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AgePercentiles groups citizens by town and reports the 50th, 75th and 99th
// age percentile of each town. Towns are returned in the order they first
// appear in citizens; callers should treat the result as a set.
func AgePercentiles(citizens []*models.Citizen, now time.Time) []models.TownAgeStats {
	var towns []string
	ages := make(map[string][]float64)
	for _, c := range citizens {
		if _, ok := ages[c.Town]; !ok {
			towns = append(towns, c.Town)
		}
		ages[c.Town] = append(ages[c.Town], float64(Age(c.BirthDate, now)))
	}

	out := make([]models.TownAgeStats, 0, len(towns))
	for _, town := range towns {
		sorted := ages[town]
		slices.Sort(sorted)
		out = append(out, models.TownAgeStats{
			Town: town,
			P50:  Round2(Percentile(sorted, P50)),
			P75:  Round2(Percentile(sorted, P75)),
			P99:  Round2(Percentile(sorted, P99)),
		})
	}
	return out
}
