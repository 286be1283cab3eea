package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contasync/contasync/internal/apperrors"
)

func Test_Store(t *testing.T) {
	t.Run("save and read roundtrip", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		path, err := store.Save("acme", "sales_data.json", []byte(`[{"total": 10}]`))
		require.NoError(t, err)
		assert.FileExists(t, path)

		data, err := store.Read("acme", "sales_data.json")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"total": 10}]`, string(data))
	})

	t.Run("save replaces existing document", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Save("acme", "sales_data.json", []byte(`[1]`))
		require.NoError(t, err)
		_, err = store.Save("acme", "sales_data.json", []byte(`[1, 2]`))
		require.NoError(t, err)

		data, err := store.Read("acme", "sales_data.json")
		require.NoError(t, err)
		assert.JSONEq(t, `[1, 2]`, string(data))
	})

	t.Run("save leaves no temp files behind", func(t *testing.T) {
		root := t.TempDir()
		store, err := NewStore(root)
		require.NoError(t, err)

		_, err = store.Save("acme", "sales_data.json", []byte(`[]`))
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(root, "acme"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "sales_data.json", entries[0].Name())
	})

	t.Run("read missing document", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Read("acme", "sales_data.json")
		assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	})

	t.Run("folder escaping the root is rejected", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		for _, folder := range []string{"../outside", "a/b", "..", ".", ""} {
			_, err := store.Read(folder, "sales_data.json")
			assert.ErrorIs(t, err, apperrors.ErrFolderInvalid, "folder %q should be rejected", folder)

			_, err = store.Save(folder, "sales_data.json", []byte(`[]`))
			assert.ErrorIs(t, err, apperrors.ErrFolderInvalid, "folder %q should be rejected", folder)
		}
	})

	t.Run("list returns json documents only", func(t *testing.T) {
		root := t.TempDir()
		store, err := NewStore(root)
		require.NoError(t, err)

		_, err = store.Save("acme", "sales_data.json", []byte(`[]`))
		require.NoError(t, err)
		_, err = store.Save("acme", "products_data.json", []byte(`[]`))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, "acme", "notes.txt"), []byte("x"), 0o640))

		docs, err := store.List("acme")
		require.NoError(t, err)

		names := make([]string, 0, len(docs))
		for _, d := range docs {
			names = append(names, d.Name)
			assert.NotZero(t, d.Size)
			assert.False(t, d.Modified.IsZero())
		}
		assert.ElementsMatch(t, []string{"sales_data.json", "products_data.json"}, names)
	})

	t.Run("list for customer without folder", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		docs, err := store.List("acme")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
