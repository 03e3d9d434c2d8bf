// Package bibalias reads and writes \bibalias{key}{target} declarations, the
// notation of the LaTeX bibalias package used to map keyword-alias citations
// onto DBLP keys.
package bibalias

import (
	"fmt"
	"regexp"
	"strings"

	"dblpfetch/src/internal/textfile"
)

// The leading [^%] keeps commented-out declarations from matching.
var declPattern = regexp.MustCompile(`^[^%]bibalias\{([^}]*)\}\{([^}]*)`)

// Mapping is one alias declaration.
type Mapping struct {
	Key string
	ID  string
}

// Aliases maps alias keys to their targets.
type Aliases map[string]string

// ParseDeclaration extracts the mapping declared on line, if any.
func ParseDeclaration(line string) (Mapping, bool) {
	m := declPattern.FindStringSubmatch(line)
	if m == nil {
		return Mapping{}, false
	}
	return Mapping{Key: m[1], ID: m[2]}, true
}

// Format renders m as a declaration followed by a blank line.
func Format(m Mapping) string {
	return fmt.Sprintf("\\bibalias{%s}{%s}\n\n", m.Key, m.ID)
}

// Visit receives each file that was actually read and the mappings found in it.
type Visit func(path string, found []Mapping)

// Load reads every declaration in files, in order. Missing files are skipped.
// A key declared twice keeps the later target.
func Load(files []string, visit Visit) (Aliases, error) {
	out := Aliases{}
	for _, path := range files {
		var found []Mapping
		ok, err := textfile.ScanLines(path, func(line string) {
			if m, ok := ParseDeclaration(line); ok {
				out[m.Key] = m.ID
				found = append(found, m)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if ok && visit != nil {
			visit(path, found)
		}
	}
	return out, nil
}

// KeysWithPrefix returns the alias keys starting with prefix.
func (a Aliases) KeysWithPrefix(prefix string) []string {
	var out []string
	for k := range a {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// TargetsWithPrefix returns the alias targets starting with prefix.
func (a Aliases) TargetsWithPrefix(prefix string) []string {
	var out []string
	for _, v := range a {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}

// Writer appends new declarations to an alias file.
type Writer struct {
	app *textfile.Appender
}

// NewWriter returns a Writer appending to path. The file is created on first Add.
func NewWriter(path string) *Writer { return &Writer{app: textfile.NewAppender(path)} }

// Add appends one declaration.
func (w *Writer) Add(m Mapping) error {
	_, err := w.app.WriteString(Format(m))
	return err
}

// Path returns the target file.
func (w *Writer) Path() string { return w.app.Path }

// Count reports the declarations written.
func (w *Writer) Count() int { return w.app.Writes() }

// Close releases the file handle.
func (w *Writer) Close() error { return w.app.Close() }
