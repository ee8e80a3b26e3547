package extract

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/nguyengg/sealer/errs"
)

// SafeJoin returns the destination path of the named archive entry under root.
//
// root must be an absolute, canonical (symlink-free) path. The entry name is slash-separated; backslashes are treated
// as separators too since some Windows archivers produce them. Names that are absolute, carry a drive letter or
// resolve outside root after cleaning ("../../etc/passwd", "a/../../b") are rejected with an errs.PathTraversal
// error, as is a name that resolves to root itself.
func SafeJoin(root, name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")

	switch {
	case clean == "":
		return "", errs.Errorf(errs.PathTraversal, "join path", name, "empty name")
	case strings.HasPrefix(clean, "/"):
		return "", errs.Errorf(errs.PathTraversal, "join path", name, "absolute name")
	case len(clean) >= 2 && clean[1] == ':', filepath.VolumeName(name) != "":
		return "", errs.Errorf(errs.PathTraversal, "join path", name, "name has volume")
	}

	clean = path.Clean(clean)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errs.Errorf(errs.PathTraversal, "join path", name, "name escapes destination")
	}

	p := filepath.Join(root, filepath.FromSlash(clean))
	if !within(root, p) {
		return "", errs.Errorf(errs.PathTraversal, "join path", name, "name escapes destination")
	}

	return p, nil
}

// VerifyParent checks that the canonical form of p's parent directory is still under root.
//
// It must be called after the parent directory has been created, so that a directory replaced by (or created
// through) a symlink pointing outside root is detected before anything is written into it.
func VerifyParent(root, p string) error {
	parent, err := filepath.EvalSymlinks(filepath.Dir(p))
	if err != nil {
		return errs.New(errs.IO, "resolve parent directory", filepath.Dir(p), err)
	}

	if !within(root, parent) {
		return errs.Errorf(errs.PathTraversal, "verify parent directory", p, "parent resolves outside destination")
	}

	return nil
}

// within returns true if p is root or a descendant of root; both must be clean absolute paths.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
