package pipeline

import "strings"

// Preview collapses every whitespace run in s to a single space, trims the
// ends, and truncates the result to at most n characters (runes).
func Preview(s string, n int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range collapsed {
		if i == n {
			return collapsed[:pos]
		}
		i++
	}
	return collapsed
}
