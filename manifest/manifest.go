// Package manifest enumerates the files and directories to be archived before any byte is written.
package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nguyengg/sealer/errs"
)

// Entry is a file or directory to be added to an archive.
type Entry struct {
	// AbsPath is the absolute path of the file or directory on disk.
	AbsPath string
	// RelPath is the slash-separated path of the entry in the archive.
	//
	// RelPath is relative to the parent of the root that the entry was found under, so selecting directory "docs"
	// produces "docs", "docs/a.txt", etc. RelPath never contains ".." segments nor an absolute prefix.
	RelPath string
	// IsDir is true if the entry is a directory.
	IsDir bool
	// Size is the size in bytes of a file entry; always 0 for directories.
	Size int64
}

// Manifest is the ordered list of entries produced by Collect.
type Manifest struct {
	Entries []Entry
	// TotalBytes is the sum of Entry.Size.
	TotalBytes int64
	// Files and Dirs count the file and directory entries.
	Files, Dirs int
}

// Collect walks every root recursively and returns the resulting Manifest.
//
// Roots are walked in the given order, each in lexical order (see filepath.WalkDir), so the same inputs always produce
// the same Manifest. The output argument is the path of the archive about to be created; an entry whose canonical
// path equals output's canonical path is skipped so that the archive never includes itself.
//
// Symlinks found during the walk are resolved: a link to a file is archived with its target's content, a link to a
// directory becomes an empty directory entry and is not descended into. A symlink given as a root is followed.
//
// Any unreadable path or broken symlink aborts the walk with an errs.Traversal error.
func Collect(ctx context.Context, roots []string, output string) (*Manifest, error) {
	if len(roots) == 0 {
		return nil, errs.New(errs.Traversal, "collect", "", fmt.Errorf("no input paths"))
	}

	c := &collector{
		ctx:    ctx,
		m:      &Manifest{},
		output: canonicalOutput(output),
		seen:   make(map[string]bool),
	}

	for _, root := range roots {
		if err := c.walk(root); err != nil {
			return nil, err
		}
	}

	return c.m, nil
}

type collector struct {
	ctx    context.Context
	m      *Manifest
	output string
	// seen maps RelPath to whether the entry is a directory.
	seen map[string]bool
}

func (c *collector) walk(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errs.New(errs.Traversal, "resolve absolute path", root, err)
	}

	// the root itself is followed if it is a symlink.
	walkRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return errs.New(errs.Traversal, "resolve root", root, err)
	}

	// base is the top-level name of everything under this root; empty for a filesystem root.
	base := filepath.Base(abs)
	if abs == filepath.Dir(abs) {
		base = ""
	}

	return filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-c.ctx.Done():
			return errs.New(errs.Cancelled, "collect", root, c.ctx.Err())
		default:
		}

		if err != nil {
			return errs.New(errs.Traversal, "walk", p, err)
		}

		rel, err := filepath.Rel(walkRoot, p)
		if err != nil {
			return errs.New(errs.Traversal, "compute relative path", p, err)
		}

		name := path.Clean(filepath.ToSlash(filepath.Join(base, rel)))
		if name == "." {
			return nil
		}
		if !ValidName(name) {
			return errs.Errorf(errs.Traversal, "compute relative path", p, "invalid archive name %q", name)
		}

		canonical, err := filepath.EvalSymlinks(p)
		if err != nil {
			return errs.New(errs.Traversal, "resolve path", p, err)
		}

		if canonical == c.output {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		switch {
		case d.IsDir():
			return c.add(Entry{AbsPath: p, RelPath: name, IsDir: true})

		case d.Type()&fs.ModeSymlink != 0:
			fi, err := os.Stat(p)
			if err != nil {
				return errs.New(errs.Traversal, "stat symlink target", p, err)
			}

			switch {
			case fi.IsDir():
				return c.add(Entry{AbsPath: p, RelPath: name, IsDir: true})
			case fi.Mode().IsRegular():
				return c.add(Entry{AbsPath: p, RelPath: name, Size: fi.Size()})
			default:
				return nil
			}

		case d.Type().IsRegular():
			fi, err := d.Info()
			if err != nil {
				return errs.New(errs.Traversal, "stat file", p, err)
			}

			return c.add(Entry{AbsPath: p, RelPath: name, Size: fi.Size()})

		default:
			// sockets, devices, named pipes, etc. cannot be archived.
			return nil
		}
	})
}

func (c *collector) add(e Entry) error {
	if isDir, ok := c.seen[e.RelPath]; ok {
		if isDir && e.IsDir {
			return nil
		}

		return errs.Errorf(errs.Traversal, "add entry", e.AbsPath, "duplicate archive name %q", e.RelPath)
	}

	c.seen[e.RelPath] = e.IsDir
	c.m.Entries = append(c.m.Entries, e)
	if e.IsDir {
		c.m.Dirs++
	} else {
		c.m.Files++
		c.m.TotalBytes += e.Size
	}

	return nil
}

// canonicalOutput returns the absolute, symlink-resolved path of the output file, which may not exist yet.
func canonicalOutput(output string) string {
	if output == "" {
		return ""
	}

	abs, err := filepath.Abs(output)
	if err != nil {
		return filepath.Clean(output)
	}

	if canonical, err := filepath.EvalSymlinks(abs); err == nil {
		return canonical
	}

	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}

	return abs
}

// ValidName returns true if the slash-separated name is a clean relative path without ".." segments.
func ValidName(name string) bool {
	if name == "" || name == "." || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}

	if filepath.VolumeName(name) != "" {
		return false
	}

	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "" {
			return false
		}
	}

	return true
}
