package bulkload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/versebase/internal/engine"
)

// Every canonical name must map to itself: the table is closed over its
// own output.
func TestCanonicalBookName_CanonicalIsFixpoint(t *testing.T) {
	for _, name := range canonicalBooks {
		got, err := CanonicalBookName(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, got)
	}
}

// Every alias must resolve, and only to a canonical name.
func TestCanonicalBookName_AliasesResolve(t *testing.T) {
	canonical := make(map[string]bool, len(canonicalBooks))
	for _, name := range canonicalBooks {
		canonical[name] = true
	}
	for alias, want := range bookAliases {
		got, err := CanonicalBookName(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, got, alias)
		assert.True(t, canonical[got], "alias %q maps outside the canon", alias)
	}
}

func TestCanonicalBookName_NormalizesFormattingNoise(t *testing.T) {
	cases := map[string]string{
		"PSALM":           "Psalms",
		"  1st   Samuel ": "1 Samuel",
		"song of sol.":    "Song of Solomon",
		"revelation":      "Revelation",
	}
	for in, want := range cases {
		got, err := CanonicalBookName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestCanonicalBookName_UnmappedIsHardError(t *testing.T) {
	_, err := CanonicalBookName("Book of Imagination")
	require.Error(t, err)
	assert.True(t, engine.IsUnmappedIdentifierError(err), "got %v", err)
	assert.Contains(t, err.Error(), "Book of Imagination")
}

func TestCanonicalCategoryKind(t *testing.T) {
	for alias, want := range categoryKinds {
		got, err := CanonicalCategoryKind(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, got)
	}

	got, err := CanonicalCategoryKind("  Reading  Plan ")
	require.NoError(t, err)
	assert.Equal(t, "plan", got)

	_, err = CanonicalCategoryKind("astrology")
	require.Error(t, err)
	assert.True(t, engine.IsUnmappedIdentifierError(err))
}
