package util

import "path/filepath"

// DefaultStem is the stem of archives created from more than one path.
const DefaultStem = "archive"

// StemAndExt is a variant of filepath.Ext that allows extended extension to be detected while also returning the stem.
//
// For example, `filepath.Ext("file.tar.gz")` would return ".gz", but `StemAndExt("file.tar.gz")` would return
// ".tar.gz" for the extension, "file" for the stem.
//
// StemAndExt will only accept file extensions of 5 characters or less, so if there is no `.` in the last 6 characters,
// the returned ext will be empty string unlike filepath.Ext which will keep searching until the last path separator or
// `.` is found.
func StemAndExt(path string) (stem, ext string) {
	n := len(path) - 1
	for i, j := n, max(0, n-6); i >= j; i-- {
		switch path[i] {
		case '\\', '/':
			stem = path[i+1:]
			return
		case '.':
			ext = path[i:] + ext
			path = path[:i]
			n = len(path)
			i, j = n, max(0, n-6)
			continue
		}
	}

	stem = filepath.Base(path)
	return
}

// ArchiveStem returns the stem of the archive that will contain the given paths.
//
// A single path names the archive after itself without its extension ("docs" for both "docs/" and "docs.txt"), while
// several paths produce DefaultStem.
func ArchiveStem(paths []string) string {
	if len(paths) != 1 {
		return DefaultStem
	}

	switch stem, _ := StemAndExt(filepath.Clean(paths[0])); stem {
	case "", ".", "..", string(filepath.Separator):
		return DefaultStem
	default:
		return stem
	}
}

// OutputDirStem returns the stem of the directory that an archive is extracted into by default.
//
// The stem is the archive's own stem. An archive without extension cannot share its name with the directory so
// "-extracted" is appended instead.
func OutputDirStem(archive string) string {
	switch stem, ext := StemAndExt(filepath.Base(archive)); {
	case stem == "" || stem == ".":
		return DefaultStem
	case ext == "":
		return stem + "-extracted"
	default:
		return stem
	}
}
