// Package textfile holds the line scanning and append-only writing shared by
// the bibliography and bibalias stages.
package textfile

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
)

const maxLine = 1024 * 1024

// ScanLines calls fn for each line of path. A missing file is reported as
// found=false with a nil error.
func ScanLines(path string, fn func(line string)) (found bool, err error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer fh.Close()
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		fn(sc.Text())
	}
	return true, sc.Err()
}

// Appender appends text to a file, opening it on first write so a run that
// adds nothing leaves the file untouched. Every write goes straight to the
// file; Close releases the handle.
type Appender struct {
	Path string
	fh   *os.File
	n    int
}

// NewAppender returns an Appender for path.
func NewAppender(path string) *Appender { return &Appender{Path: path} }

// WriteString appends s.
func (a *Appender) WriteString(s string) (int, error) {
	if a.fh == nil {
		fh, err := os.OpenFile(a.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		a.fh = fh
	}
	n, err := a.fh.WriteString(s)
	if err == nil {
		a.n++
	}
	return n, err
}

// Writes reports how many successful appends were made.
func (a *Appender) Writes() int { return a.n }

// Close closes the file if it was opened.
func (a *Appender) Close() error {
	if a.fh == nil {
		return nil
	}
	err := a.fh.Close()
	a.fh = nil
	return err
}
