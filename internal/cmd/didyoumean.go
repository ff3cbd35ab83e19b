package cmd

import "strings"

// maxSuggestDistance is the largest edit distance still offered as a suggestion.
const maxSuggestDistance = 3

// levenshtein computes the Levenshtein edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	row := make([]int, lb+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= la; i++ {
		prev := i - 1
		row[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			val := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = val
		}
	}
	return row[lb]
}

func closest(input string, candidates []string, key func(string) string) string {
	best := maxSuggestDistance + 1
	match := ""
	for _, c := range candidates {
		if d := levenshtein(input, strings.ToLower(key(c))); d < best {
			best = d
			match = c
		}
	}
	return match
}

// suggestCommand finds the closest command name to the unknown input.
func suggestCommand(unknown string, commands []string) string {
	return closest(strings.ToLower(unknown), commands, func(s string) string { return s })
}

// suggestFlag finds the closest flag name to the unknown input, comparing
// without leading dashes but returning the flag as written.
func suggestFlag(unknown string, flagNames []string) string {
	stripped := strings.ToLower(strings.TrimLeft(unknown, "-"))
	if stripped == "" {
		return ""
	}
	return closest(stripped, flagNames, func(s string) string { return strings.TrimLeft(s, "-") })
}
