// Package harness invokes the external parser-comparison tool. The tool's
// internal diffing algorithm is a black box: the pipeline hands it two parser
// binaries and one source tree, and takes back a single JSON document.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// Invocation describes one comparison: two parser implementations and the
// root of the source tree to parse, tagged with the originating pin name.
type Invocation struct {
	Name       string
	ParserA    string
	ParserB    string
	SourcePath string
}

// Runner is the comparison capability. Implementations return the harness's
// verbatim report document.
type Runner interface {
	Compare(ctx context.Context, inv Invocation) (json.RawMessage, error)
}

// Error reports a failed harness invocation: the process exited non-zero or
// emitted output that is not a JSON document.
type Error struct {
	Name     string
	ExitCode int
	Stderr   string
	Reason   string
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("harness failed for %q: %s (exit %d): %s", e.Name, e.Reason, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("harness failed for %q: %s (exit %d)", e.Name, e.Reason, e.ExitCode)
}

// Compile-time assertion: *ExecRunner satisfies Runner.
var _ Runner = (*ExecRunner)(nil)

// ExecRunner runs the harness binary as a subprocess:
//
//	<bin> --parser-a <a> --parser-b <b> <sourcePath>
//
// The report document is read from stdout; stderr passes through to the
// debug log so parser crash output stays visible.
type ExecRunner struct {
	Bin string
}

// NewExecRunner returns an ExecRunner for the given harness binary.
func NewExecRunner(bin string) *ExecRunner {
	return &ExecRunner{Bin: bin}
}

// stderrTailLimit bounds how much harness stderr is kept in errors.
const stderrTailLimit = 2048

// Compare implements Runner by spawning the harness process.
func (r *ExecRunner) Compare(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	cmd := exec.CommandContext(ctx, r.Bin,
		"--parser-a", inv.ParserA,
		"--parser-b", inv.ParserB,
		inv.SourcePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if stderr.Len() > 0 {
		slog.Debug("harness stderr", "pin", inv.Name, "stderr", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return nil, &Error{
			Name:     inv.Name,
			ExitCode: exitCode,
			Stderr:   stderrTail(stderr.String()),
			Reason:   "process error",
		}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 || !gjson.ValidBytes(out) {
		return nil, &Error{
			Name:   inv.Name,
			Stderr: stderrTail(stderr.String()),
			Reason: "output is not a JSON document",
		}
	}
	return json.RawMessage(out), nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}
