package recipeform

import (
	"errors"
	"sort"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Flatten walks nested validation errors in a stable order and returns
// each distinct message once. Identical messages raised by different
// fields collapse into a single entry.
func Flatten(errs validation.Errors) []string {
	var out []string
	seen := make(map[string]struct{})
	collect(errs, func(msg string) {
		if _, ok := seen[msg]; ok {
			return
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	})
	return out
}

func collect(errs validation.Errors, emit func(string)) {
	for _, key := range sortedKeys(errs) {
		err := errs[key]
		var nested validation.Errors
		if errors.As(err, &nested) {
			collect(nested, emit)
			continue
		}
		emit(err.Error())
	}
}

// sortedKeys orders list indexes numerically and field names by fieldOrder.
func sortedKeys(errs validation.Errors) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		if aErr == nil && bErr == nil {
			return a < b
		}
		ra, rb := fieldRank(keys[i]), fieldRank(keys[j])
		if ra != rb {
			return ra < rb
		}
		return keys[i] < keys[j]
	})
	return keys
}

func fieldRank(key string) int {
	for i, f := range fieldOrder {
		if f == key {
			return i
		}
	}
	return len(fieldOrder)
}
