// Package bibtex finds DBLP keys in bibliography files and splits DBLP record
// responses into individual BibTeX entries.
package bibtex

import (
	"fmt"
	"regexp"
	"strings"

	"dblpfetch/src/internal/stringsx"
	"dblpfetch/src/internal/textfile"
)

var (
	// record-opening line in a .bib file, e.g. @inproceedings{DBLP:conf/x/Y20,
	openingPattern = regexp.MustCompile(`@.*?\{(DBLP:[^,]*),`)
	// one entry in a fetched response: from @type{ to a closing brace at line start
	recordPattern    = regexp.MustCompile(`(?s)@[a-zA-Z]+\{[^@]*\n\}`)
	recordKeyPattern = regexp.MustCompile(`^@[a-zA-Z]+\{(DBLP:[^,]+),\s*`)
)

// Record is one BibTeX entry returned by DBLP.
type Record struct {
	Key  string
	Text string
}

// ParseOpeningKeys returns the DBLP keys opened on line.
func ParseOpeningKeys(line string) []string {
	var out []string
	for _, m := range openingPattern.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	return out
}

// KnownKeys collects every DBLP key already present in files. Missing files
// are skipped. visit, when set, is called for every file actually read.
func KnownKeys(files []string, visit func(path string, keys []string)) (stringsx.Set, error) {
	known := stringsx.NewSet()
	for _, path := range files {
		var keys []string
		ok, err := textfile.ScanLines(path, func(line string) {
			for _, k := range ParseOpeningKeys(line) {
				known.Add(k)
				keys = append(keys, k)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if ok && visit != nil {
			visit(path, keys)
		}
	}
	return known, nil
}

// SplitRecords extracts every entry from a record endpoint response together
// with the DBLP key it declares. An entry whose key is not a DBLP key is an error.
func SplitRecords(body string) ([]Record, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []Record
	for _, block := range recordPattern.FindAllString(body, -1) {
		m := recordKeyPattern.FindStringSubmatch(block)
		if m == nil {
			return out, fmt.Errorf("bibtex: record without DBLP key: %.60q", block)
		}
		out = append(out, Record{Key: strings.TrimSpace(m[1]), Text: block})
	}
	return out, nil
}

// Writer appends records to a bibliography file, each followed by a blank line.
type Writer struct {
	app *textfile.Appender
}

// NewWriter returns a Writer appending to path. The file is created on first Add.
func NewWriter(path string) *Writer { return &Writer{app: textfile.NewAppender(path)} }

// Add appends r.
func (w *Writer) Add(r Record) error {
	_, err := w.app.WriteString(strings.TrimRight(r.Text, "\n") + "\n\n")
	return err
}

// Path returns the target file.
func (w *Writer) Path() string { return w.app.Path }

// Count reports the records written.
func (w *Writer) Count() int { return w.app.Writes() }

// Close releases the file handle.
func (w *Writer) Close() error { return w.app.Close() }
