package providers

import "strings"

// EmailStrategy pulls a candidate payer email out of a provider payload.
type EmailStrategy[T any] struct {
	Name    string
	Extract func(T) string
}

// FirstEmail tries strategies in order and returns the first non-blank address with the
// name of the strategy that produced it.
func FirstEmail[T any](payload T, strategies []EmailStrategy[T]) (email, source string, ok bool) {
	for _, s := range strategies {
		if v := strings.TrimSpace(s.Extract(payload)); v != "" {
			return v, s.Name, true
		}
	}
	return "", "", false
}
