package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_CreatesParentsAndTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "doc.json")
	require.NoError(t, WriteJSON(path, Document{Name: "x", Payload: json.RawMessage(`{"k":1}`)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "x", doc.Name)

	// No temp droppings left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadDocument_RejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	missingName := filepath.Join(dir, "anon.json")
	require.NoError(t, os.WriteFile(missingName, []byte(`{"payload":{}}`), 0o644))
	_, err := ReadDocument(missingName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing pin name")

	notJSON := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(notJSON, []byte("junk"), 0o644))
	_, err = ReadDocument(notJSON)
	require.Error(t, err)
}
