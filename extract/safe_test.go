package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/sealer/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	root := filepath.FromSlash("/dst/root")

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "docs/a.txt", want: "/dst/root/docs/a.txt"},
		{name: "docs/sub/", want: "/dst/root/docs/sub"},
		{name: "docs/./b.txt", want: "/dst/root/docs/b.txt"},
		{name: "docs/../c.txt", want: "/dst/root/c.txt"},
		{name: `docs\d.txt`, want: "/dst/root/docs/d.txt"},
		{name: "../../etc/passwd", wantErr: true},
		{name: "docs/../../escape", wantErr: true},
		{name: `..\..\evil.exe`, wantErr: true},
		{name: "/etc/passwd", wantErr: true},
		{name: `\windows\system32`, wantErr: true},
		{name: "C:/windows/system32", wantErr: true},
		{name: "..", wantErr: true},
		{name: ".", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(root, tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.PathTraversal)
				return
			}

			assert.NoErrorf(t, err, "SafeJoin(%s) error = %v", tt.name, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestVerifyParent(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	assert.NoError(t, VerifyParent(root, filepath.Join(root, "a.txt")))
	assert.NoError(t, VerifyParent(root, filepath.Join(root, "docs", "a.txt")))
	assert.ErrorIs(t, VerifyParent(root, filepath.Join(root, "link", "a.txt")), errs.PathTraversal)
	assert.ErrorIs(t, VerifyParent(root, filepath.Join(root, "missing", "a.txt")), errs.IO)
}
