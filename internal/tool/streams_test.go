package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStreams = `
streams:
  - name: Alpha Live
    url: https://alpha.example
    category: live
    description: Gaming streams
    tags: [gaming]
  - name: Beta Films
    url: https://beta.example
    category: subscription
    description: Classic cinema
    tags: [film, Documentary]
  - name: Gamma
    url: https://gamma.example
    category: live
    description: Talk shows
    tags: [chat]
`

func TestStreams_EmbeddedDirectoryLoads(t *testing.T) {
	dir := DefaultStreamDirectory()
	assert.NotEmpty(t, dir.List(""))
	assert.Contains(t, dir.Categories(), "live")
}

func TestStreams_ListAndCategories(t *testing.T) {
	dir, err := LoadStreamDirectory([]byte(testStreams))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"live": 2, "subscription": 1}, dir.Categories())
	assert.Len(t, dir.List("LIVE"), 2)
	assert.Len(t, dir.List(""), 3)
	assert.Empty(t, dir.List("radio"))
}

func TestStreams_SearchIsCaseInsensitive(t *testing.T) {
	dir, err := LoadStreamDirectory([]byte(testStreams))
	require.NoError(t, err)

	got := dir.Search("documentary")
	require.Len(t, got, 1)
	assert.Equal(t, "Beta Films", got[0].Name)

	assert.Len(t, dir.Search("GAM"), 2) // "Gamma" by name, "Alpha Live" by description
	assert.Empty(t, dir.Search("nothing-here"))
	assert.Nil(t, dir.Search("  "))
}

func TestStreams_InvalidDirectory(t *testing.T) {
	_, err := LoadStreamDirectory([]byte("streams:\n  - name: x\n"))
	assert.Error(t, err)

	_, err = LoadStreamDirectory([]byte("streams: [unclosed"))
	assert.Error(t, err)
}

func TestStreamsTool_Execute(t *testing.T) {
	dir, err := LoadStreamDirectory([]byte(testStreams))
	require.NoError(t, err)
	tool := NewStreamsTool(dir)
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"action": "categories"})
	require.NoError(t, err)
	assert.Equal(t, "live (2)\nsubscription (1)", out)

	out, err = tool.Execute(ctx, map[string]any{"action": "search", "query": "talk"})
	require.NoError(t, err)
	var streams []Stream
	require.NoError(t, json.Unmarshal([]byte(out), &streams))
	require.Len(t, streams, 1)
	assert.Equal(t, "https://gamma.example", streams[0].URL)

	_, err = tool.Execute(ctx, map[string]any{"action": "list", "category": "radio"})
	assert.Error(t, err)

	_, err = tool.Execute(ctx, map[string]any{"action": "search"})
	assert.Error(t, err)
}
