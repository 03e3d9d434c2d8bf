package fetchcmd

import (
	"context"
	"net/http"
	"strings"

	"dblpfetch/src/internal/bibalias"
	"dblpfetch/src/internal/bibtex"
	"dblpfetch/src/internal/citekey"
	"dblpfetch/src/internal/config"
	"dblpfetch/src/internal/dblp"
	"dblpfetch/src/internal/httpx"
	"dblpfetch/src/internal/progress"
	"dblpfetch/src/internal/resolve"
	"dblpfetch/src/internal/stringsx"
	"dblpfetch/src/internal/texfiles"
)

// Input is everything one run needs.
type Input struct {
	// Doc is the main document, with or without .tex.
	Doc    string
	Config *config.Config
	DryRun bool
	// HTTP overrides the client built from Config.Timeout.
	HTTP     httpx.Doer
	Reporter *progress.Reporter
}

// Summary reports what a run changed.
type Summary struct {
	AliasFile       string
	BibFile         string
	AliasesAdded    int
	RecordsAppended int
	// Missing lists the DBLP keys that lacked a record; in a dry run nothing is fetched for them.
	Missing []string
}

// Changed returns the files that received appends.
func (s Summary) Changed() []string {
	var out []string
	if s.AliasesAdded > 0 {
		out = append(out, s.AliasFile)
	}
	if s.RecordsAppended > 0 {
		out = append(out, s.BibFile)
	}
	return out
}

// Run locates the build files for in.Doc, resolves uncited keyword aliases
// and appends every missing DBLP record.
func Run(ctx context.Context, in Input) (Summary, error) {
	cfg, rep := in.Config, in.Reporter
	base := texfiles.BaseName(in.Doc)
	sum := Summary{AliasFile: texfiles.DefaultAliasFile(base), BibFile: cfg.BibFile}
	rep.Printf("Main tex file: %s", base)

	files, err := texfiles.Locate(base, cfg.BibFile, sum.AliasFile)
	if err != nil {
		return sum, err
	}
	printList(rep, "Sub-documents in "+files.Log+":", files.SubDocs)
	printList(rep, "Bibliography files in "+files.Aux+":", files.BibFiles)
	printList(rep, "Bibalias files in "+files.Log+":", files.AliasFiles)

	rep.Printf("Looking for DBLP keys in:")
	known, err := bibtex.KnownKeys(files.BibFiles, func(path string, keys []string) {
		rep.Printf(" > %s (%d keys)", path, len(keys))
	})
	if err != nil {
		return sum, err
	}

	rep.Printf("Looking for bibaliases in:")
	aliases, err := bibalias.Load(append(append([]string{}, files.AliasFiles...), files.SubDocs...), func(path string, found []bibalias.Mapping) {
		rep.Printf(" > %s", path)
		for _, m := range found {
			rep.Printf("      * %s -> %s", m.Key, m.ID)
		}
	})
	if err != nil {
		return sum, err
	}

	rep.Printf("Looking for citations in %s", files.Aux)
	cites, err := citekey.CollectFile(files.Aux)
	if err != nil {
		return sum, err
	}
	printList(rep, "   DBLP citations:", cites.Canonical.Sorted())
	printList(rep, "   Keyword-alias citations:", cites.Alias.Sorted())
	printList(rep, "   Other citations:", cites.Plain.Sorted())

	client := &dblp.Client{HTTP: in.HTTP, SearchURL: cfg.SearchURL, RecordURL: cfg.RecordURL, UserAgent: cfg.UserAgent}
	if client.HTTP == nil {
		client.HTTP = &http.Client{Timeout: cfg.Timeout}
	}
	pacer := httpx.NewPacer(cfg.Interval)

	added := stringsx.NewSet()
	if unresolved := resolve.UnresolvedAliases(cites.Alias, aliases); unresolved.Len() > 0 {
		rep.Printf("Adding missing bibaliases to %s:", sum.AliasFile)
		added, sum.AliasesAdded, err = addAliases(ctx, in, sum.AliasFile, unresolved, client, pacer)
		if err != nil {
			return sum, err
		}
	}

	missing := resolve.MissingRecords(cites.Canonical, aliases, added, known)
	sum.Missing = missing.Sorted()
	if missing.Len() > 0 {
		if in.DryRun {
			printList(rep, "Missing BibTeX records (dry run, not fetched):", sum.Missing)
		} else {
			rep.Printf("Fetching BibTeX records from DBLP for missing keys:")
			sum.RecordsAppended, err = addRecords(ctx, in, missing, client, pacer)
			if err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// addAliases resolves keys and appends declarations to path. The file is
// closed on every return so declarations written before a failure are kept.
func addAliases(ctx context.Context, in Input, path string, keys stringsx.Set, s resolve.Searcher, p resolve.Pacer) (added stringsx.Set, n int, err error) {
	if in.DryRun {
		added, err = resolve.AddAliases(ctx, keys, s, p, dryAliases{}, in.Reporter)
		return added, 0, err
	}
	w := bibalias.NewWriter(path)
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		n = w.Count()
	}()
	added, err = resolve.AddAliases(ctx, keys, s, p, w, in.Reporter)
	return added, 0, err
}

func addRecords(ctx context.Context, in Input, ids stringsx.Set, f resolve.RecordFetcher, p resolve.Pacer) (n int, err error) {
	w := bibtex.NewWriter(in.Config.BibFile)
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		n = w.Count()
	}()
	_, err = resolve.AddRecords(ctx, ids, f, p, w, in.Reporter)
	return 0, err
}

// dryAliases accepts declarations without writing them.
type dryAliases struct{}

func (dryAliases) Add(bibalias.Mapping) error { return nil }

func printList(rep *progress.Reporter, title string, items []string) {
	if len(items) == 0 {
		return
	}
	rep.Printf("%s", title)
	for _, it := range items {
		rep.Printf("    * %s", strings.TrimSpace(it))
	}
}
