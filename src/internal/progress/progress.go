package progress

import (
	"fmt"
	"io"
)

// Reporter prints progress to out unless quiet, and warnings to errOut always.
type Reporter struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

// New returns a Reporter. A nil writer discards.
func New(out, errOut io.Writer, quiet bool) *Reporter {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Reporter{out: out, errOut: errOut, quiet: quiet}
}

// Discard returns a Reporter that prints nothing.
func Discard() *Reporter { return New(nil, nil, true) }

// Printf prints a progress line.
func (r *Reporter) Printf(format string, args ...any) {
	if r == nil || r.quiet {
		return
	}
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}

// Warnf prints a warning line prefixed with "warning: ".
func (r *Reporter) Warnf(format string, args ...any) {
	if r == nil {
		return
	}
	_, _ = fmt.Fprintf(r.errOut, "warning: "+format+"\n", args...)
}
