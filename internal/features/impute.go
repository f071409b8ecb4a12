package features

import (
	"sort"
	"strings"
)

// IsNullable reports whether a missing key stays null instead of being
// zero-imputed.
func IsNullable(key string) bool {
	for _, seg := range strings.Split(key, "_") {
		for _, n := range nullableStats {
			if seg == n {
				return true
			}
		}
	}
	return false
}

// KeyUnion returns the sorted union of keys across sets.
func KeyUnion(sets ...Set) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for k := range s {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Impute fills every key missing from a set: imputed zero by default, null for
// the nullable stats. Existing values, including nulls, are left alone.
// It returns the number of values filled.
func Impute(keys []string, sets ...Set) int {
	filled := 0
	for _, s := range sets {
		for _, k := range keys {
			if _, ok := s[k]; ok {
				continue
			}
			if IsNullable(k) {
				s[k] = NullValue()
			} else {
				s[k] = ImputedZero()
			}
			filled++
		}
	}
	return filled
}
