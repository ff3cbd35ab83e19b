// Package resolve matches typed names, such as profile names, against the
// known ones.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

var (
	ErrEmptyQuery = errors.New("empty name")
	ErrEmptyNames = errors.New("no names to match against")
)

// NotFoundError reports a name with no fuzzy match.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no match found for %q", e.Query)
}

// AmbiguousError indicates several names matched equally well. Candidates
// are sorted best-first and capped.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous name %q, candidates: %s", e.Query, strings.Join(e.Candidates, ", "))
}

type lowerSource []string

func (s lowerSource) String(i int) string { return strings.ToLower(s[i]) }
func (s lowerSource) Len() int            { return len(s) }

// Name returns the known name query refers to. An exact case-insensitive
// match wins; otherwise the best fuzzy match is used unless the top two
// tie, which returns *AmbiguousError.
func Name(query string, names []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(names) == 0 {
		return "", ErrEmptyNames
	}

	for _, name := range names {
		if strings.EqualFold(name, query) {
			return name, nil
		}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), lowerSource(names))
	if len(results) == 0 {
		return "", &NotFoundError{Query: query}
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return "", &AmbiguousError{Query: query, Candidates: ranked(names, results, 5)}
	}
	return names[results[0].Index], nil
}

// Rank returns up to limit names matching query, best first.
func Rank(query string, names []string, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" || len(names) == 0 || limit <= 0 {
		return nil
	}
	return ranked(names, fuzzy.FindFrom(strings.ToLower(query), lowerSource(names)), limit)
}

func ranked(names []string, results fuzzy.Matches, limit int) []string {
	if len(results) == 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = names[r.Index]
	}
	return out
}
