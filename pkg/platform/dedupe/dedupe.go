// Package dedupe provides order-preserving duplicate removal.
package dedupe

// Stable removes duplicates from values, keeping the first occurrence of
// each element. Order is preserved and the input is not modified.
//
// Example:
//
//	Stable([]int64{3, 1, 3, 2, 1})
//	// Returns: []int64{3, 1, 2}
func Stable[T comparable](values []T) []T {
	if values == nil {
		return nil
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}

// Set builds a membership set from values.
func Set[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
