// Package texfiles locates the files that make up a LaTeX build: the main
// document, its log and aux output, the included sub-documents, and the
// bibliography and bibalias files the build refers to.
package texfiles

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"dblpfetch/src/internal/stringsx"
	"dblpfetch/src/internal/textfile"
)

// ErrMissingInput marks an absent required input file.
var ErrMissingInput = errors.New("missing input file")

var (
	subDocPattern  = regexp.MustCompile(`\((\.[^\s]*\.tex)`)
	aliasPattern   = regexp.MustCompile(`\((\.[^\s]*\.bal)`)
	bibDataPattern = regexp.MustCompile(`\\bibdata\{(.*)\}`)
)

// Files is the set of inputs derived from one main document.
type Files struct {
	Base       string
	Tex        string
	Log        string
	Aux        string
	SubDocs    []string
	BibFiles   []string
	AliasFiles []string
}

// BaseName strips a trailing .tex from the document argument.
func BaseName(arg string) string { return strings.TrimSuffix(arg, ".tex") }

// DefaultAliasFile returns the bibalias file written for base.
func DefaultAliasFile(base string) string { return base + ".bal" }

// Locate checks the build outputs for base exist and collects the file sets.
// bibFile and aliasFile are always part of the result.
func Locate(base, bibFile, aliasFile string) (Files, error) {
	f := Files{Base: base, Tex: base + ".tex", Log: base + ".log", Aux: base + ".aux"}
	if !isFile(f.Tex) {
		return f, fmt.Errorf("%w: file %s does not exist", ErrMissingInput, f.Tex)
	}
	if !isFile(f.Log) {
		return f, fmt.Errorf("%w: missing log file %s; run latex before running dblpfetch", ErrMissingInput, f.Log)
	}
	if !isFile(f.Aux) {
		return f, fmt.Errorf("%w: missing aux file %s; run latex before running dblpfetch", ErrMissingInput, f.Aux)
	}

	subDocs, aliases := stringsx.NewSet(), stringsx.NewSet(aliasFile)
	err := scanLines(f.Log, func(line string) {
		for _, m := range SubDocuments(line) {
			subDocs.Add(m)
		}
		for _, m := range AliasFiles(line) {
			aliases.Add(m)
		}
	})
	if err != nil {
		return f, err
	}

	bibs := stringsx.NewSet(bibFile)
	err = scanLines(f.Aux, func(line string) {
		for _, b := range BibData(line) {
			bibs.Add(b)
		}
	})
	if err != nil {
		return f, err
	}

	f.SubDocs = subDocs.Sorted()
	f.AliasFiles = aliases.Sorted()
	f.BibFiles = bibs.Sorted()
	return f, nil
}

// SubDocuments returns the ./relative .tex paths opened on a log line.
func SubDocuments(line string) []string { return captures(subDocPattern, line) }

// AliasFiles returns the ./relative .bal paths opened on a log line.
func AliasFiles(line string) []string { return captures(aliasPattern, line) }

// BibData returns the bibliography files named by a \bibdata{...} aux line, with .bib appended.
func BibData(line string) []string {
	m := bibDataPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	var out []string
	for _, name := range strings.Split(m[1], ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name+".bib")
	}
	return out
}

func captures(re *regexp.Regexp, line string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	return out
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// scanLines calls fn for every line of a file that must exist.
func scanLines(path string, fn func(string)) error {
	found, err := textfile.ScanLines(path, fn)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	return nil
}
