package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// verbWidth right-aligns status verbs the way cargo does.
const verbWidth = 12

// Reporter writes human-readable progress lines.
type Reporter struct {
	out  io.Writer
	root string
	verb *color.Color
}

// NewReporter writes to out and shows paths relative to root when they are inside it.
// Colors are only used when out is a file; color itself turns them off for non-terminals.
func NewReporter(out io.Writer, root string) *Reporter {
	if out == nil {
		out = os.Stdout
	}

	verb := color.New(color.FgGreen, color.Bold)
	if _, ok := out.(*os.File); !ok {
		verb.DisableColor()
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Reporter{
		out:  out,
		root: root,
		verb: verb,
	}
}

// Status prints a highlighted verb followed by a formatted message.
func (r *Reporter) Status(verb, format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.verb.Sprintf("%*s", verbWidth, verb), fmt.Sprintf(format, args...))
}

// Line prints a plain message.
func (r *Reporter) Line(message string) {
	_, _ = fmt.Fprintln(r.out, message)
}

// Path formats p for display.
func (r *Reporter) Path(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}

	return rel
}
