package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/parity-works/pindiff/internal/registry"
)

// Compile-time assertion: *GitFetcher satisfies Fetcher.
var _ Fetcher = (*GitFetcher)(nil)

// GitFetcher checks out a pinned revision by shelling out to the git binary,
// then verifies the checkout against the pin's tree-level digest. Any git
// failure, including an unreachable submodule, is a FetchError for this pin.
type GitFetcher struct {
	// Bin is the git executable; "git" when empty. Tests substitute a stub.
	Bin string
}

// NewGitFetcher returns a GitFetcher running bin (or "git" when empty).
func NewGitFetcher(bin string) *GitFetcher {
	if bin == "" {
		bin = "git"
	}
	return &GitFetcher{Bin: bin}
}

// Fetch implements Fetcher for git pins.
func (f *GitFetcher) Fetch(ctx context.Context, pin registry.Pin, dir string) error {
	steps := [][]string{
		{"init", "--quiet"},
		{"remote", "add", "origin", pin.URL},
		{"fetch", "--quiet", "--depth", "1", "origin", pin.Revision},
		{"checkout", "--quiet", "FETCH_HEAD"},
	}
	if pin.Submodules {
		steps = append(steps, []string{"submodule", "update", "--init", "--recursive", "--depth", "1"})
	}

	for _, args := range steps {
		if err := f.run(ctx, dir, args); err != nil {
			return &FetchError{Name: pin.Name, Err: err}
		}
	}

	got, err := registry.TreeDigest(dir)
	if err != nil {
		return &FetchError{Name: pin.Name, Err: fmt.Errorf("hashing checkout: %w", err)}
	}
	if got != pin.TreeHash {
		return &IntegrityError{Name: pin.Name, Want: pin.TreeHash, Got: got}
	}
	return nil
}

func (f *GitFetcher) run(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, f.Bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	if len(out) > 0 {
		slog.Debug("git output", "args", args, "output", strings.TrimSpace(string(out)))
	}
	return nil
}
