package llmgateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func truncateFile(path string, size int64) error {
	return os.Truncate(path, size)
}

func TestEmbedCache_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmbedCache(dir, "text-embedding-3-small")
	require.NoError(t, err)
	defer c.Close()

	vec := []float32{0.1, -0.2, 0.3}
	require.NoError(t, c.Put("hello world", vec))

	got, ok := c.Get("hello world")
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = c.Get("never cached")
	assert.False(t, ok)
}

func TestEmbedCache_KeyTrimsWhitespace(t *testing.T) {
	assert.Equal(t, KeyFor("hello"), KeyFor("  hello  \n"))
}

func TestEmbedCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	c1, err := NewEmbedCache(dir, "model-a")
	require.NoError(t, err)

	vec := []float32{1, 2, 3, 4}
	require.NoError(t, c1.Put("persisted text", vec))
	require.NoError(t, c1.Close())

	c2, err := NewEmbedCache(dir, "model-a")
	require.NoError(t, err)
	defer c2.Close()

	got, ok := c2.Get("persisted text")
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestEmbedCache_DifferentModelsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a, err := NewEmbedCache(dir, "model-a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewEmbedCache(dir, "model-b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Put("same text", []float32{1}))
	_, ok := b.Get("same text")
	assert.False(t, ok)
}

func TestEmbedCache_ToleratesTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	c1, err := NewEmbedCache(dir, "model-trunc")
	require.NoError(t, err)
	require.NoError(t, c1.Put("one", []float32{1}))
	require.NoError(t, c1.Put("two", []float32{2}))
	require.NoError(t, c1.Close())

	path := filepath.Join(dir, "embed_cache."+cacheFileHash("model-trunc"))
	info, err := fileSize(path)
	require.NoError(t, err)
	require.NoError(t, truncateFile(path, info-2))

	c2, err := NewEmbedCache(dir, "model-trunc")
	require.NoError(t, err)
	defer c2.Close()

	_, ok := c2.Get("one")
	assert.True(t, ok)
}
