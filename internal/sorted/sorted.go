// Package sorted keeps slices ordered under a caller-supplied comparator.
//
// The collections held by the library are small enough (thousands of
// entries) that an O(n) shift on insert is fine; lookups are O(log n).
package sorted

import "slices"

// Index binary-searches s for the first element comparing equal to v.
// When no element is equal it returns the position v would be inserted at.
func Index[T any](s []T, v T, cmp func(a, b T) int) (int, bool) {
	return slices.BinarySearchFunc(s, v, cmp)
}

// Insert places v into the sorted slice s. An element equal to v makes v land
// directly in front of it, so duplicates stay adjacent and are never dropped.
func Insert[T any](s []T, v T, cmp func(a, b T) int) []T {
	i, _ := Index(s, v, cmp)
	return slices.Insert(s, i, v)
}

// Retrieve returns the element of s equal to v under cmp.
func Retrieve[T any](s []T, v T, cmp func(a, b T) int) (T, bool) {
	i, found := Index(s, v, cmp)
	if !found {
		var zero T
		return zero, false
	}
	return s[i], true
}

// Remove deletes the element identical to v. The run of elements comparing
// equal to v is checked first; if the slice is no longer sorted with respect
// to v (its sort key changed in place) a linear scan finds it.
func Remove[T comparable](s []T, v T, cmp func(a, b T) int) ([]T, bool) {
	if i, found := Index(s, v, cmp); found {
		for j := i; j < len(s) && cmp(s[j], v) == 0; j++ {
			if s[j] == v {
				return slices.Delete(s, j, j+1), true
			}
		}
	}
	if j := slices.Index(s, v); j >= 0 {
		return slices.Delete(s, j, j+1), true
	}
	return s, false
}
