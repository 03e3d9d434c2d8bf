package fetchcmd

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeDBLP serves the search and record endpoints from fixed tables.
type fakeDBLP struct {
	mu       sync.Mutex
	searches map[string]string // q -> JSON body
	records  map[string]string // path under /rec/ -> BibTeX body
	requests []string
}

func (f *fakeDBLP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	f.mu.Unlock()
	switch {
	case r.URL.Path == "/search/publ/api":
		body, ok := f.searches[r.URL.Query().Get("q")]
		if !ok {
			body = `{"result":{"hits":{"@total":"0"}}}`
		}
		_, _ = io.WriteString(w, body)
	case strings.HasPrefix(r.URL.Path, "/rec/"):
		body, ok := f.records[strings.TrimPrefix(r.URL.Path, "/rec/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeDBLP) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func bib(kind, key string) string {
	return "@" + kind + "{" + key + ",\n  author = {A},\n  title  = {T},\n  year   = {2020}\n}\n"
}

func hits(keys ...string) string {
	var hs []string
	for _, k := range keys {
		hs = append(hs, `{"info":{"key":"`+k+`","title":"T"}}`)
	}
	return `{"result":{"hits":{"@total":"` + strconv.Itoa(len(keys)) + `","hit":[` + strings.Join(hs, ",") + `]}}}`
}

// setupDoc writes paper.tex/log/aux into a fresh working directory.
func setupDoc(t *testing.T, aux string) {
	t.Helper()
	dir := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(dir)
	for name, body := range map[string]string{
		"paper.tex": "\\documentclass{article}\n",
		"paper.log": "This is pdfTeX\n(./paper.tex\n(./intro.tex)\n",
		"paper.aux": aux,
	} {
		if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type runResult struct {
	out, errOut string
	err         error
}

func runCmd(t *testing.T, srv *httptest.Server, d Deps, extra ...string) runResult {
	t.Helper()
	if d.Getenv == nil {
		d.Getenv = func(string) string { return "" }
	}
	cmd := New(d)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	args := []string{"--interval", "0", "--search-url", srv.URL + "/search/publ/api", "--record-url", srv.URL + "/rec/"}
	cmd.SetArgs(append(args, extra...))
	err := cmd.Execute()
	return runResult{out: out.String(), errOut: errOut.String(), err: err}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	return string(b)
}

func TestFetch_CanonicalCitationAppendsRecord(t *testing.T) {
	setupDoc(t, "\\relax\n\\citation{DBLP:conf/x/Y20}\n\\bibdata{dblp}\n")
	f := &fakeDBLP{records: map[string]string{
		"conf/x/Y20.bib": bib("inproceedings", "DBLP:conf/x/Y20") + "\n" + bib("proceedings", "DBLP:conf/x/2020"),
	}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	res := runCmd(t, srv, Deps{}, "paper")
	if res.err != nil {
		t.Fatalf("run: %v (stderr %q)", res.err, res.errOut)
	}
	if len(f.requests) != 1 || f.requests[0] != "/rec/conf/x/Y20.bib" {
		t.Fatalf("requests: %q", f.requests)
	}
	got := readFile(t, "dblp.bib")
	if !strings.Contains(got, "@inproceedings{DBLP:conf/x/Y20,") || !strings.Contains(got, "@proceedings{DBLP:conf/x/2020,") {
		t.Fatalf("dblp.bib: %q", got)
	}
	if !strings.Contains(res.out, "2 records appended") {
		t.Fatalf("summary missing: %q", res.out)
	}
	if _, err := os.Stat("paper.bal"); !os.IsNotExist(err) {
		t.Fatalf("alias file should not be created")
	}
}

func TestFetch_KeywordAliasResolvesAndFetches(t *testing.T) {
	setupDoc(t, "\\citation{!smith:networks:2020}\n\\bibdata{dblp}\n")
	f := &fakeDBLP{
		searches: map[string]string{"smith networks 2020": hits("conf/y/Smith20")},
		records:  map[string]string{"conf/y/Smith20.bib": bib("inproceedings", "DBLP:conf/y/Smith20")},
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	res := runCmd(t, srv, Deps{}, "-q", "paper.tex")
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if res.out != "" {
		t.Fatalf("quiet run printed progress: %q", res.out)
	}
	if got := readFile(t, "paper.bal"); got != "\\bibalias{!smith:networks:2020}{DBLP:conf/y/Smith20}\n\n" {
		t.Fatalf("paper.bal: %q", got)
	}
	if got := readFile(t, "dblp.bib"); !strings.Contains(got, "@inproceedings{DBLP:conf/y/Smith20,") {
		t.Fatalf("dblp.bib: %q", got)
	}
}

func TestFetch_AmbiguousSearchWarnsAndSucceeds(t *testing.T) {
	setupDoc(t, "\\citation{!graph:coloring}\n")
	f := &fakeDBLP{searches: map[string]string{"graph coloring": hits("a/b/1", "a/b/2", "a/b/3")}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	res := runCmd(t, srv, Deps{}, "paper")
	if res.err != nil {
		t.Fatalf("ambiguous match must not fail the run: %v", res.err)
	}
	if !strings.Contains(res.errOut, "warning: search key !graph:coloring does not match a unique DBLP entry") {
		t.Fatalf("warning missing: %q", res.errOut)
	}
	if readFile(t, "paper.bal") != "" || readFile(t, "dblp.bib") != "" {
		t.Fatalf("nothing should be written")
	}
	if f.count() != 1 {
		t.Fatalf("only the search should be issued: %q", f.requests)
	}
}

func TestFetch_SecondRunIsNoop(t *testing.T) {
	setupDoc(t, "\\citation{DBLP:conf/x/Y20,!smith:networks:2020,knuth84}\n\\bibdata{dblp}\n")
	f := &fakeDBLP{
		searches: map[string]string{"smith networks 2020": hits("conf/y/Smith20")},
		records: map[string]string{
			"conf/x/Y20.bib":     bib("inproceedings", "DBLP:conf/x/Y20"),
			"conf/y/Smith20.bib": bib("article", "DBLP:conf/y/Smith20"),
		},
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	if res := runCmd(t, srv, Deps{}, "paper"); res.err != nil {
		t.Fatalf("first run: %v", res.err)
	}
	bibAfter, balAfter := readFile(t, "dblp.bib"), readFile(t, "paper.bal")
	first := f.count()
	if first != 3 {
		t.Fatalf("first run requests: %q", f.requests)
	}

	res := runCmd(t, srv, Deps{}, "paper")
	if res.err != nil {
		t.Fatalf("second run: %v", res.err)
	}
	if f.count() != first {
		t.Fatalf("second run hit DBLP: %q", f.requests[first:])
	}
	if readFile(t, "dblp.bib") != bibAfter || readFile(t, "paper.bal") != balAfter {
		t.Fatalf("second run modified files")
	}
	if !strings.Contains(res.out, "0 bibaliases added, 0 records appended") {
		t.Fatalf("summary: %q", res.out)
	}
}

func TestFetch_AliasInSubDocumentAndKnownRecord(t *testing.T) {
	setupDoc(t, "\\citation{!a:b,DBLP:journals/z/W19}\n\\bibdata{refs}\n")
	_ = os.WriteFile("intro.tex", []byte("\\bibalias{!a:b}{DBLP:conf/a/A1}\n"), 0o644)
	_ = os.WriteFile("refs.bib", []byte(bib("article", "DBLP:journals/z/W19")), 0o644)
	f := &fakeDBLP{records: map[string]string{"conf/a/A1.bib": bib("inproceedings", "DBLP:conf/a/A1")}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	if res := runCmd(t, srv, Deps{}, "paper"); res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	// alias declared in ./intro.tex: no search; W19 already in refs.bib: no fetch
	if len(f.requests) != 1 || f.requests[0] != "/rec/conf/a/A1.bib" {
		t.Fatalf("requests: %q", f.requests)
	}
	if strings.Contains(readFile(t, "dblp.bib"), "W19") {
		t.Fatalf("known record re-appended")
	}
}

func TestFetch_DryRunWritesNothing(t *testing.T) {
	setupDoc(t, "\\citation{DBLP:conf/x/Y20,!smith:networks:2020}\n")
	f := &fakeDBLP{searches: map[string]string{"smith networks 2020": hits("conf/y/Smith20")}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	res := runCmd(t, srv, Deps{}, "-n", "paper")
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if readFile(t, "dblp.bib") != "" || readFile(t, "paper.bal") != "" {
		t.Fatalf("dry run wrote files")
	}
	if !strings.Contains(res.out, "DBLP:conf/y/Smith20") || !strings.Contains(res.out, "DBLP:conf/x/Y20") {
		t.Fatalf("dry run should list missing keys: %q", res.out)
	}
	for _, r := range f.requests {
		if strings.HasPrefix(r, "/rec/") {
			t.Fatalf("dry run fetched a record: %s", r)
		}
	}
}

func TestFetch_MissingAuxFails(t *testing.T) {
	setupDoc(t, "")
	_ = os.Remove("paper.aux")
	srv := httptest.NewServer(&fakeDBLP{})
	defer srv.Close()
	res := runCmd(t, srv, Deps{}, "paper")
	if res.err == nil || !strings.Contains(res.err.Error(), "paper.aux") {
		t.Fatalf("expected error naming paper.aux, got %v", res.err)
	}
}

func TestFetch_RecordErrorKeepsEarlierAppends(t *testing.T) {
	setupDoc(t, "\\citation{DBLP:a/a/A1,DBLP:b/b/B1}\n")
	f := &fakeDBLP{records: map[string]string{"a/a/A1.bib": bib("article", "DBLP:a/a/A1")}}
	srv := httptest.NewServer(f)
	defer srv.Close()
	res := runCmd(t, srv, Deps{}, "paper")
	if res.err == nil || !strings.Contains(res.err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", res.err)
	}
	if !strings.Contains(readFile(t, "dblp.bib"), "DBLP:a/a/A1") {
		t.Fatalf("append before failure was lost")
	}
}

func TestFetch_CommitChangedFiles(t *testing.T) {
	setupDoc(t, "\\citation{!smith:networks:2020}\n")
	f := &fakeDBLP{
		searches: map[string]string{"smith networks 2020": hits("conf/y/Smith20")},
		records:  map[string]string{"conf/y/Smith20.bib": bib("inproceedings", "DBLP:conf/y/Smith20")},
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	var gotPaths []string
	var gotMsg string
	commit := func(paths []string, message string) error { gotPaths, gotMsg = paths, message; return nil }
	res := runCmd(t, srv, Deps{Commit: commit}, "--commit", "-b", "out.bib", "paper")
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if len(gotPaths) != 2 || gotPaths[0] != "paper.bal" || gotPaths[1] != "out.bib" {
		t.Fatalf("commit paths: %q", gotPaths)
	}
	if !strings.Contains(gotMsg, "1 bibaliases added") {
		t.Fatalf("commit message: %q", gotMsg)
	}
}

func TestFetch_CommitOutsideRepoWarns(t *testing.T) {
	setupDoc(t, "\\citation{DBLP:conf/x/Y20}\n")
	f := &fakeDBLP{records: map[string]string{"conf/x/Y20.bib": bib("inproceedings", "DBLP:conf/x/Y20")}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	commit := func([]string, string) error { return errors.New("git add failed: exit 128: fatal: not a git repository") }
	res := runCmd(t, srv, Deps{Commit: commit}, "--commit", "paper")
	if res.err != nil {
		t.Fatalf("not-a-repo should only warn: %v", res.err)
	}
	if !strings.Contains(res.errOut, "skipping git commit") {
		t.Fatalf("warning missing: %q", res.errOut)
	}
}

func TestFetch_ConfigFileAndEnv(t *testing.T) {
	setupDoc(t, "\\citation{DBLP:conf/x/Y20}\n")
	f := &fakeDBLP{records: map[string]string{"conf/x/Y20.bib": bib("inproceedings", "DBLP:conf/x/Y20")}}
	srv := httptest.NewServer(f)
	defer srv.Close()
	_ = os.WriteFile("dblpfetch.yaml", []byte("bibtex_file: from-config.bib\nquiet: true\n"), 0o644)

	env := map[string]string{"DBLPFETCH_CONFIG": "dblpfetch.yaml"}
	res := runCmd(t, srv, Deps{Getenv: func(k string) string { return env[k] }}, "paper")
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if res.out != "" {
		t.Fatalf("quiet from config ignored: %q", res.out)
	}
	if !strings.Contains(readFile(t, "from-config.bib"), "DBLP:conf/x/Y20") {
		t.Fatalf("bibtex_file from config ignored")
	}

	env["DBLPFETCH_INTERVAL"] = "later"
	if res := runCmd(t, srv, Deps{Getenv: func(k string) string { return env[k] }}, "paper"); res.err == nil {
		t.Fatalf("expected env parse error")
	}
}
