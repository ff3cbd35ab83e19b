package resolve_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salmonumbrella/paddock-cli/internal/resolve"
)

func TestName(t *testing.T) {
	names := []string{"default", "staging", "production", "prod-eu"}

	tests := []struct {
		query string
		want  string
	}{
		{"staging", "staging"},
		{"STAGING", "staging"},
		{"stg", "staging"},
		{"  default ", "default"},
		{"prod-eu", "prod-eu"},
		{"production", "production"},
	}
	for _, tt := range tests {
		got, err := resolve.Name(tt.query, names)
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.want, got, tt.query)
	}
}

func TestName_Errors(t *testing.T) {
	_, err := resolve.Name("", []string{"a"})
	assert.ErrorIs(t, err, resolve.ErrEmptyQuery)

	_, err = resolve.Name("a", nil)
	assert.ErrorIs(t, err, resolve.ErrEmptyNames)

	_, err = resolve.Name("zzz", []string{"default", "staging"})
	var notFound *resolve.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "zzz", notFound.Query)
}

func TestName_Ambiguous(t *testing.T) {
	_, err := resolve.Name("dev", []string{"dev-a", "dev-b"})
	var ambiguous *resolve.AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.ElementsMatch(t, []string{"dev-a", "dev-b"}, ambiguous.Candidates)
	assert.Contains(t, err.Error(), `ambiguous name "dev"`)
}

func TestRank(t *testing.T) {
	names := []string{"staging", "stage-2", "production"}

	got := resolve.Rank("stag", names, 5)
	assert.ElementsMatch(t, []string{"staging", "stage-2"}, got)

	assert.Len(t, resolve.Rank("stag", names, 1), 1)
	assert.Nil(t, resolve.Rank("", names, 5))
	assert.Nil(t, resolve.Rank("stag", names, 0))
	assert.Nil(t, resolve.Rank("xyz", names, 5))
}
