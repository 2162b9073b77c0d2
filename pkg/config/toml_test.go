package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupNestedKeyPath(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "value",
			},
		},
	}

	v, ok := lookup(doc, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = lookup(doc, "a.b.missing")
	assert.False(t, ok)

	_, ok = lookup(doc, "x.y.z")
	assert.False(t, ok)
}

func TestLookupStopsAtNonMapIntermediate(t *testing.T) {
	doc := map[string]any{"a": "leaf"}
	_, ok := lookup(doc, "a.b")
	assert.False(t, ok)
}

func TestLoadFileMissingPathReturnsEmptyDocument(t *testing.T) {
	doc, err := LoadFile(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoadFileParsesNestedTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratakv.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \"127.0.0.1:20161\"\n"), 0o600))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	v, ok := lookup(doc, "server.addr")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:20161", v)
}

func TestLoadFileEmptyPathReturnsEmptyDocument(t *testing.T) {
	doc, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, doc)
}
