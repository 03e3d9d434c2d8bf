// Package citekey classifies the citation keys a LaTeX run records in its
// aux file.
package citekey

import (
	"bufio"
	"io"
	"os"
	"strings"

	"dblpfetch/src/internal/stringsx"
)

const (
	// CanonicalPrefix starts every DBLP key.
	CanonicalPrefix = "DBLP:"
	// AliasMarker starts a keyword-alias citation such as !smith:networks:2020.
	AliasMarker = "!"

	citationDirective = `\citation{`
)

// Kind is the category of a citation key.
type Kind int

const (
	Plain Kind = iota
	Canonical
	KeywordAlias
)

func (k Kind) String() string {
	switch k {
	case Canonical:
		return "canonical"
	case KeywordAlias:
		return "keyword-alias"
	default:
		return "plain"
	}
}

// Classify returns the category of key by prefix.
func Classify(key string) Kind {
	switch {
	case strings.HasPrefix(key, CanonicalPrefix):
		return Canonical
	case strings.HasPrefix(key, AliasMarker):
		return KeywordAlias
	default:
		return Plain
	}
}

// Citations partitions every cited key into exactly one of three sets.
type Citations struct {
	Canonical stringsx.Set
	Alias     stringsx.Set
	Plain     stringsx.Set
}

// NewCitations returns empty sets ready for Add.
func NewCitations() Citations {
	return Citations{Canonical: stringsx.NewSet(), Alias: stringsx.NewSet(), Plain: stringsx.NewSet()}
}

// Add files key under its category.
func (c Citations) Add(key string) {
	switch Classify(key) {
	case Canonical:
		c.Canonical.Add(key)
	case KeywordAlias:
		c.Alias.Add(key)
	default:
		c.Plain.Add(key)
	}
}

// ParseCitationLine returns the keys of a \citation{a,b,c} aux line.
func ParseCitationLine(line string) ([]string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, citationDirective) {
		return nil, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(line, citationDirective), "}")
	var keys []string
	for _, k := range strings.Split(body, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, true
}

// Collect reads aux content and classifies every cited key.
func Collect(r io.Reader) (Citations, error) {
	c := NewCitations()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		keys, ok := ParseCitationLine(sc.Text())
		if !ok {
			continue
		}
		for _, k := range keys {
			c.Add(k)
		}
	}
	return c, sc.Err()
}

// CollectFile is Collect over the aux file at path.
func CollectFile(path string) (Citations, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Citations{}, err
	}
	defer fh.Close()
	return Collect(fh)
}

// SearchQuery turns !a:b:c into the search string a+b+c.
func SearchQuery(aliasKey string) string {
	return strings.Join(strings.Split(strings.TrimPrefix(aliasKey, AliasMarker), ":"), "+")
}

// RecordPath returns the DBLP key without its DBLP: prefix, e.g. conf/x/Y20.
func RecordPath(canonical string) string { return strings.TrimPrefix(canonical, CanonicalPrefix) }

// Canonicalize prefixes a bare DBLP key such as conf/x/Y20.
func Canonicalize(key string) string {
	if strings.HasPrefix(key, CanonicalPrefix) {
		return key
	}
	return CanonicalPrefix + key
}
