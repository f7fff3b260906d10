package contentfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalBasic(t *testing.T) {
	data := []byte("Title: Sunset\n\n----\n\nCaption: Golden hour at the pier\n")
	c, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "caption"}, c.Keys())
	assert.Equal(t, "Sunset", c.Get("Title").String())
	assert.Equal(t, "Golden hour at the pier", c.Get("caption").String())
}

func TestUnmarshalMultiline(t *testing.T) {
	data := []byte("Title: Post\n----\nText: first line\nsecond line\n\nthird after blank\n----\nTags: a, b\n")
	c, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "first line\nsecond line\n\nthird after blank", c.Get("text").String())
	assert.Equal(t, []string{"a", "b"}, c.Get("tags").Split(""))
}

func TestUnmarshalEdgeCases(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		c, err := Unmarshal(nil)
		require.NoError(t, err)
		assert.Zero(t, c.Len())
	})

	t.Run("duplicate key last wins", func(t *testing.T) {
		c, err := Unmarshal([]byte("Title: one\n----\nTitle: two\n"))
		require.NoError(t, err)
		assert.Equal(t, "two", c.Get("title").String())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("separator with trailing whitespace", func(t *testing.T) {
		c, err := Unmarshal([]byte("A: 1\n----   \nB: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, "2", c.Get("b").String())
	})

	t.Run("longer separator", func(t *testing.T) {
		c, err := Unmarshal([]byte("A: 1\n--------\nB: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("three dashes is not a separator", func(t *testing.T) {
		c, err := Unmarshal([]byte("A: 1\n---\nB: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, "1\n---\nB: 2", c.Get("a").String())
	})

	t.Run("missing colon", func(t *testing.T) {
		_, err := Unmarshal([]byte("no colon here\n"))
		assert.Error(t, err)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("Title", "Sunset"))
	require.NoError(t, c.Set("Text", "line one\nline two"))
	require.NoError(t, c.Set("Tags", "sea, sky"))

	out := c.Marshal()
	back, err := Unmarshal(out)
	require.NoError(t, err)

	assert.Equal(t, c.Keys(), back.Keys())
	for _, k := range c.Keys() {
		assert.Equal(t, c.Get(k).String(), back.Get(k).String(), "key %s", k)
	}

	// normalized content marshals byte-stably
	assert.Equal(t, out, back.Marshal())
}

func TestSetRejectsSeparatorValue(t *testing.T) {
	c := New()
	err := c.Set("text", "above\n----\nbelow")
	assert.Error(t, err)

	err = c.Set("bad:key", "v")
	assert.Error(t, err)

	err = c.Set("  ", "v")
	assert.Error(t, err)
}

func TestRemoveAndClone(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))

	cp := c.Clone()
	c.Remove("a")

	assert.False(t, c.Has("a"))
	assert.Equal(t, []string{"b"}, c.Keys())
	assert.True(t, cp.Has("a"), "clone unaffected by remove")
}
