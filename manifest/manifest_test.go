package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/sealer/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill creates the named file with the given content, creating parent directories as needed.
func fill(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
}

func relPaths(m *Manifest) []string {
	names := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.IsDir {
			names = append(names, e.RelPath+"/")
		} else {
			names = append(names, e.RelPath)
		}
	}

	return names
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	fill(t, filepath.Join(dir, "docs/sub/b.txt"), "0123456789")
	fill(t, filepath.Join(dir, "c.txt"), "c")

	m, err := Collect(context.Background(), []string{filepath.Join(dir, "docs"), filepath.Join(dir, "c.txt")}, filepath.Join(dir, "out.zip"))
	require.NoErrorf(t, err, "Collect() error = %v", err)

	assert.Equal(t, []string{
		"docs/",
		"docs/a.txt",
		"docs/sub/",
		"docs/sub/b.txt",
		"c.txt",
	}, relPaths(m))
	assert.Equal(t, int64(16), m.TotalBytes)
	assert.Equal(t, 3, m.Files)
	assert.Equal(t, 2, m.Dirs)

	for _, e := range m.Entries {
		assert.Truef(t, filepath.IsAbs(e.AbsPath), "AbsPath %q is not absolute", e.AbsPath)
	}
}

func TestCollect_ExcludesOutput(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	// the archive being written lives inside the selected directory.
	fill(t, filepath.Join(dir, "docs/docs.zip"), "partial archive")

	// use a relative-looking but equivalent output path to exercise canonicalisation.
	output := filepath.Join(dir, "docs", "sub", "..", "docs.zip")
	m, err := Collect(context.Background(), []string{filepath.Join(dir, "docs")}, output)
	require.NoErrorf(t, err, "Collect() error = %v", err)

	assert.Equal(t, []string{"docs/", "docs/a.txt"}, relPaths(m))
	assert.Equal(t, int64(5), m.TotalBytes)
}

func TestCollect_ExcludesOutputThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	fill(t, filepath.Join(dir, "docs/out.zip"), "partial archive")
	require.NoError(t, os.Symlink(filepath.Join(dir, "docs"), filepath.Join(dir, "alias")))

	m, err := Collect(context.Background(), []string{filepath.Join(dir, "docs")}, filepath.Join(dir, "alias", "out.zip"))
	require.NoErrorf(t, err, "Collect() error = %v", err)

	assert.Equal(t, []string{"docs/", "docs/a.txt"}, relPaths(m))
}

func TestCollect_Symlinks(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "target/t.txt"), "target")
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	require.NoError(t, os.Symlink(filepath.Join(dir, "target/t.txt"), filepath.Join(dir, "docs/link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "target"), filepath.Join(dir, "docs/linkdir")))

	m, err := Collect(context.Background(), []string{filepath.Join(dir, "docs")}, "")
	require.NoErrorf(t, err, "Collect() error = %v", err)

	assert.Equal(t, []string{"docs/", "docs/a.txt", "docs/link.txt", "docs/linkdir/"}, relPaths(m))
	assert.Equal(t, int64(11), m.TotalBytes)
}

func TestCollect_SymlinkRoot(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "target/t.txt"), "target")
	require.NoError(t, os.Symlink(filepath.Join(dir, "target"), filepath.Join(dir, "alias")))

	m, err := Collect(context.Background(), []string{filepath.Join(dir, "alias")}, "")
	require.NoErrorf(t, err, "Collect() error = %v", err)

	// the name of the selected path is kept even though its content comes from the target.
	assert.Equal(t, []string{"alias/", "alias/t.txt"}, relPaths(m))
}

func TestCollect_Errors(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	fill(t, filepath.Join(dir, "other/docs/a.txt"), "again")
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken-link")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "withbroken"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "withbroken/link")))

	tests := []struct {
		name  string
		roots []string
	}{
		{name: "no roots", roots: nil},
		{name: "missing root", roots: []string{filepath.Join(dir, "nope")}},
		{name: "broken symlink root", roots: []string{filepath.Join(dir, "broken-link")}},
		{name: "broken symlink inside", roots: []string{filepath.Join(dir, "withbroken")}},
		{name: "duplicate file", roots: []string{filepath.Join(dir, "docs"), filepath.Join(dir, "other/docs")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Collect(context.Background(), tt.roots, "")
			assert.Nil(t, m)
			assert.ErrorIs(t, err, errs.Traversal)
		})
	}
}

func TestCollect_Cancelled(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, []string{filepath.Join(dir, "docs")}, "")
	assert.ErrorIs(t, err, errs.Cancelled)
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"docs/a.txt", true},
		{"a", true},
		{"", false},
		{".", false},
		{"/etc/passwd", false},
		{"../../etc/passwd", false},
		{"docs/../../x", false},
		{"docs//a.txt", false},
		{`docs\a.txt`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	fill(t, filepath.Join(dir, "docs/a.txt"), "hello")
	require.NoError(t, os.Symlink(filepath.Join(dir, "docs"), filepath.Join(dir, "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken")))

	ms := Inspect([]string{
		filepath.Join(dir, "docs"),
		filepath.Join(dir, "docs/a.txt"),
		filepath.Join(dir, "dirlink"),
		filepath.Join(dir, "broken"),
		filepath.Join(dir, "nope"),
	})
	require.Len(t, ms, 5)

	assert.Equal(t, Metadata{Path: filepath.Join(dir, "docs"), Name: "docs", IsDir: true}, ms[0])
	assert.Equal(t, Metadata{Path: filepath.Join(dir, "docs/a.txt"), Name: "a.txt", Size: 5}, ms[1])
	assert.Equal(t, Metadata{Path: filepath.Join(dir, "dirlink"), Name: "dirlink", IsDir: true, IsSymlink: true}, ms[2])

	assert.True(t, ms[3].IsSymlink)
	assert.NotEmpty(t, ms[3].Error)
	assert.False(t, ms[4].IsSymlink)
	assert.NotEmpty(t, ms[4].Error)
}
