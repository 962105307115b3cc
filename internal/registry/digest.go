package registry

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"
)

// Digest is a normalized sha256 content digest in "sha256:<hex>" form.
type Digest string

// ParseDigest normalizes the registry's hash spellings into a Digest.
// Accepted forms: "sha256:<hex>", bare hex, and SRI "sha256-<base64>".
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", fmt.Errorf("empty digest")
	case strings.HasPrefix(s, "sha256:"):
		return digestFromHex(strings.TrimPrefix(s, "sha256:"))
	case strings.HasPrefix(s, "sha256-"):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "sha256-"))
		if err != nil {
			return "", fmt.Errorf("invalid SRI digest %q: %w", s, err)
		}
		if len(raw) != sha256.Size {
			return "", fmt.Errorf("SRI digest %q is %d bytes, want %d", s, len(raw), sha256.Size)
		}
		return Digest("sha256:" + hex.EncodeToString(raw)), nil
	default:
		return digestFromHex(s)
	}
}

func digestFromHex(h string) (Digest, error) {
	h = strings.ToLower(h)
	if len(h) != sha256.Size*2 {
		return "", fmt.Errorf("digest %q is %d hex chars, want %d", h, len(h), sha256.Size*2)
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("digest %q is not hex: %w", h, err)
	}
	return Digest("sha256:" + h), nil
}

// String returns the normalized "sha256:<hex>" form.
func (d Digest) String() string { return string(d) }

// Hex returns the bare hex portion, suitable for use as a path component.
func (d Digest) Hex() string { return strings.TrimPrefix(string(d), "sha256:") }

// UnmarshalJSON accepts any of the spellings ParseDigest accepts.
func (d *Digest) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDigest(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON emits the normalized form.
func (d Digest) MarshalJSON() ([]byte, error) {
	return []byte(`"` + string(d) + `"`), nil
}

// DigestBytes computes the digest of a byte slice.
func DigestBytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest("sha256:" + hex.EncodeToString(sum[:]))
}

// DigestReader computes the digest of everything readable from r.
func DigestReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Digest("sha256:" + hex.EncodeToString(h.Sum(nil))), nil
}

func hasGitComponent(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == ".git" {
			return true
		}
	}
	return false
}

// TreeDigest computes a tree-level digest of a directory: a sha256 over the
// sorted (per-file digest, relative path) pairs of every regular file under
// dir. VCS metadata (".git") is excluded so a checkout digests the same as
// the tree it denotes.
func TreeDigest(dir string) (Digest, error) {
	files, err := dirhash.DirFiles(dir, "")
	if err != nil {
		return "", err
	}

	kept := files[:0]
	for _, f := range files {
		// Skip VCS metadata at any depth; submodule checkouts carry nested
		// .git gitfiles.
		if hasGitComponent(strings.TrimPrefix(f, "/")) {
			continue
		}
		kept = append(kept, f)
	}
	sort.Strings(kept)

	h := sha256.New()
	for _, f := range kept {
		rel := strings.TrimPrefix(f, "/")
		fh, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		fd, err := DigestReader(fh)
		fh.Close()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s  %s\n", fd.Hex(), rel)
	}
	return Digest("sha256:" + hex.EncodeToString(h.Sum(nil))), nil
}
