package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionResolveAliases(t *testing.T) {
	c := NewCollection(CollectionOptions{})

	cases := []struct {
		in   string
		want string
	}{
		{"shell", "shell"},
		{"bash", "shell"},
		{"sh", "shell"},
		{"zsh", "shell"},
		{"python", "python"},
		{"py", "python"},
		{"javascript", "javascript"},
		{"js", "javascript"},
		{"node", "javascript"},
		{"ruby", "ruby"},
		{"r", "r"},
		{"php", "php"},
		{"applescript", "applescript"},
	}
	for _, tc := range cases {
		lang, ok := c.Resolve(tc.in)
		require.True(t, ok, "resolve %q", tc.in)
		assert.Equal(t, tc.want, lang.Name(), "resolve %q", tc.in)
	}
}

func TestCollectionResolveCaseAndWhitespace(t *testing.T) {
	c := NewCollection(CollectionOptions{})

	for _, in := range []string{"Python", "PYTHON", "  python  ", "Bash"} {
		_, ok := c.Resolve(in)
		assert.True(t, ok, "resolve %q", in)
	}

	_, ok := c.Resolve("cobol")
	assert.False(t, ok)
}

func TestCollectionRunUnsupportedLanguage(t *testing.T) {
	c := NewCollection(CollectionOptions{})

	ch, err := c.Run(context.Background(), "cobol", "DISPLAY 'hi'")
	assert.Nil(t, ch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "cobol")
}

func TestCollectionReusesRunners(t *testing.T) {
	c := NewCollection(CollectionOptions{})

	lang, ok := c.Resolve("shell")
	require.True(t, ok)

	first := c.runner(lang)
	second := c.runner(lang)
	assert.Same(t, first, second)
}

func TestCollectionNamesSorted(t *testing.T) {
	c := NewCollection(CollectionOptions{})

	names := c.Names()
	assert.Equal(t, []string{
		"applescript", "javascript", "php", "python", "r", "ruby", "shell",
	}, names)
}

func TestCollectionStatePersistsAcrossRuns(t *testing.T) {
	requireBash(t)
	c := NewCollection(CollectionOptions{})
	defer c.TerminateAll()

	ch, err := c.Run(context.Background(), "bash", "STICKY=collection")
	require.NoError(t, err)
	collectEvents(t, ch, 10*time.Second)

	ch, err = c.Run(context.Background(), "bash", `echo "$STICKY"`)
	require.NoError(t, err)
	events := collectEvents(t, ch, 10*time.Second)
	assert.Contains(t, outputs(events), "collection")
}
