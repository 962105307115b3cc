package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// looksLikeTar sniffs the ustar magic at offset 257.
func looksLikeTar(body []byte) bool {
	return len(body) > 262 && bytes.Equal(body[257:262], []byte("ustar"))
}

func unpackTarGz(body []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer gz.Close()
	return unpackTar(gz, dir)
}

func unpackTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	var names []string
	type entry struct {
		header *tar.Header
		body   []byte
	}
	var entries []entry

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir, tar.TypeReg, tar.TypeSymlink:
		default:
			continue // devices, fifos etc. have no place in a source tree
		}
		var body []byte
		if hdr.Typeflag == tar.TypeReg {
			body, err = io.ReadAll(tr)
			if err != nil {
				return err
			}
		}
		names = append(names, hdr.Name)
		entries = append(entries, entry{header: hdr, body: body})
	}

	strip := commonTopLevel(names)
	for _, e := range entries {
		rel, ok := safeRelPath(e.header.Name, strip)
		if !ok {
			if rel == "" {
				continue // the stripped top-level directory itself
			}
			return fmt.Errorf("archive entry escapes extraction root: %q", e.header.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := rejectSymlinkComponents(dir, target); err != nil {
			return err
		}
		switch e.header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(e.header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFileEntry(target, e.body, e.header.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
	return nil
}

func unpackZip(body []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	strip := commonTopLevel(names)

	for _, f := range zr.File {
		rel, ok := safeRelPath(f.Name, strip)
		if !ok {
			if rel == "" {
				continue
			}
			return fmt.Errorf("archive entry escapes extraction root: %q", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := rejectSymlinkComponents(dir, target); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}
		if err := writeFileEntry(target, data, f.FileInfo().Mode()); err != nil {
			return err
		}
	}
	return nil
}

// commonTopLevel returns the single top-level directory shared by every
// entry, or "" when the archive has none (or a flat layout).
func commonTopLevel(names []string) string {
	top := ""
	sawNested := false
	for _, name := range names {
		name = strings.TrimPrefix(path.Clean(name), "./")
		if name == "." || name == "" {
			continue
		}
		first, _, found := strings.Cut(name, "/")
		if first == ".." || first == "" {
			// Escaping or absolute entries are rejected later; never let
			// them become the strip prefix.
			return ""
		}
		if found {
			sawNested = true
		}
		if top == "" {
			top = first
		} else if first != top {
			return ""
		}
	}
	if !sawNested {
		// Flat archives (or a single top-level file) keep their layout.
		return ""
	}
	return top
}

// safeRelPath cleans an archive entry name, strips the common top-level
// directory, and rejects paths that would escape the extraction root.
// The bool result is false for rejected paths and for the empty path.
func safeRelPath(name, strip string) (string, bool) {
	rel := strings.TrimPrefix(path.Clean(name), "./")
	if strip != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, strip), "/")
	}
	if rel == "" || rel == "." {
		return "", false
	}
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return rel, false
	}
	return rel, true
}

// rejectSymlinkComponents fails when any existing component of target under
// dir is a symlink. Entry names alone cannot escape dir (safeRelPath), but an
// earlier entry can plant a symlink that later MkdirAll or WriteFile calls
// would follow outside the extraction root.
func rejectSymlinkComponents(dir, target string) error {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return err
	}
	cur := dir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." || part == "" {
			continue
		}
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil // remaining components do not exist yet
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("archive entry writes through symlink: %q", cur)
		}
	}
	return nil
}

func writeFileEntry(target string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, mode.Perm()|0o400)
}
