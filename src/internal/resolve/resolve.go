// Package resolve decides which keyword aliases and DBLP records are missing
// and fills them in from DBLP.
package resolve

import (
	"context"
	"fmt"

	"dblpfetch/src/internal/bibalias"
	"dblpfetch/src/internal/bibtex"
	"dblpfetch/src/internal/citekey"
	"dblpfetch/src/internal/dblp"
	"dblpfetch/src/internal/progress"
	"dblpfetch/src/internal/stringsx"
)

// Searcher runs a DBLP publication search.
type Searcher interface {
	Search(ctx context.Context, query string) (dblp.SearchResult, error)
}

// RecordFetcher downloads the BibTeX for a bare DBLP key.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, path string) (string, error)
}

// Pacer blocks until the next outbound call is allowed.
type Pacer interface {
	Wait(ctx context.Context) error
}

// AliasSink receives newly resolved alias declarations.
type AliasSink interface {
	Add(m bibalias.Mapping) error
}

// RecordSink receives newly fetched records.
type RecordSink interface {
	Add(r bibtex.Record) error
}

// UnresolvedAliases returns the cited keyword aliases without a declaration.
func UnresolvedAliases(cited stringsx.Set, aliases bibalias.Aliases) stringsx.Set {
	return cited.Minus(stringsx.NewSet(aliases.KeysWithPrefix(citekey.AliasMarker)...))
}

// MissingRecords returns the DBLP keys that are cited, reachable through a
// declared alias, or newly resolved, and not yet in any bibliography file.
func MissingRecords(cited stringsx.Set, aliases bibalias.Aliases, added, known stringsx.Set) stringsx.Set {
	viaAlias := stringsx.NewSet(aliases.TargetsWithPrefix(citekey.CanonicalPrefix)...)
	return cited.Union(viaAlias, added).Minus(known)
}

// AddAliases searches DBLP for each keyword alias in keys. A search with
// exactly one match is declared through sink and its DBLP key is returned in
// the result; any other count is reported as a warning and skipped. Keys are
// processed in sorted order with one pacer wait per key.
func AddAliases(ctx context.Context, keys stringsx.Set, s Searcher, p Pacer, sink AliasSink, rep *progress.Reporter) (stringsx.Set, error) {
	added := stringsx.NewSet()
	for _, key := range keys.Sorted() {
		if err := p.Wait(ctx); err != nil {
			return added, err
		}
		res, err := s.Search(ctx, citekey.SearchQuery(key))
		if err != nil {
			return added, fmt.Errorf("search %s: %w", key, err)
		}
		hit, ok, err := res.UniqueKey()
		if err != nil {
			return added, fmt.Errorf("search %s: %w", key, err)
		}
		if !ok {
			rep.Warnf("search key %s does not match a unique DBLP entry (%d matches)", key, res.Total)
			continue
		}
		id := citekey.Canonicalize(hit)
		if err := sink.Add(bibalias.Mapping{Key: key, ID: id}); err != nil {
			return added, err
		}
		added.Add(id)
		rep.Printf(" * %s -> %s", key, id)
	}
	return added, nil
}

// AddRecords fetches the BibTeX for each DBLP key in ids and passes every
// returned entry not already passed in this call to sink. Entries are
// deduplicated by their own declared key, which may differ from the key that
// was requested. One pacer wait is spent per requested key.
func AddRecords(ctx context.Context, ids stringsx.Set, f RecordFetcher, p Pacer, sink RecordSink, rep *progress.Reporter) (stringsx.Set, error) {
	seen := stringsx.NewSet()
	for _, id := range ids.Sorted() {
		if err := p.Wait(ctx); err != nil {
			return seen, err
		}
		rep.Printf(" * %s", id)
		body, err := f.FetchRecord(ctx, citekey.RecordPath(id))
		if err != nil {
			return seen, fmt.Errorf("fetch %s: %w", id, err)
		}
		recs, err := bibtex.SplitRecords(body)
		if err != nil {
			return seen, fmt.Errorf("fetch %s: %w", id, err)
		}
		if len(recs) == 0 {
			rep.Warnf("no BibTeX entry returned for %s", id)
			continue
		}
		for _, r := range recs {
			if seen.Has(r.Key) {
				continue
			}
			if err := sink.Add(r); err != nil {
				return seen, err
			}
			seen.Add(r.Key)
		}
	}
	return seen, nil
}
