package runner

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/mensylisir/xmrun/common"
)

// PtySize returns the local terminal's (columns, rows), or 80x24 when stdout
// is not a terminal.
func PtySize() (int, int) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols <= 0 || rows <= 0 {
		return common.DefaultPtyColumns, common.DefaultPtyRows
	}
	return cols, rows
}

type fdReader interface {
	io.Reader
	Fd() uintptr
}

// IsTerminal reports whether r is backed by a terminal device.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(fdReader)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
