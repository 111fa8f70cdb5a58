package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestFiles_FiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	b := touch(t, root, "b.py")
	a := touch(t, root, "a/z.JS")
	touch(t, root, "a/readme.md")
	c := touch(t, root, "c/d/e.py")

	files, err := Files(root, Options{Extensions: []string{"py", ".js"}})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, files)
}

func TestFiles_DefaultExtensions(t *testing.T) {
	root := t.TempDir()
	h := touch(t, root, "x.h")
	touch(t, root, "x.go")

	files, err := Files(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{h}, files)
}

func TestFiles_SkipVendor(t *testing.T) {
	root := t.TempDir()
	own := touch(t, root, "src/app.js")
	touch(t, root, "node_modules/lib/index.js")

	files, err := Files(root, Options{Extensions: []string{".js"}, SkipVendor: true})
	require.NoError(t, err)
	assert.Equal(t, []string{own}, files)

	all, err := Files(root, Options{Extensions: []string{".js"}})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFiles_MissingRoot(t *testing.T) {
	_, err := Files(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestNormalizeExtensions(t *testing.T) {
	assert.Equal(t, []string{".go", ".py"}, NormalizeExtensions([]string{"GO", " .py ", ""}))
}
