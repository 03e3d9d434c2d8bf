package fetchcmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dblpfetch/src/internal/config"
	"dblpfetch/src/internal/gitutil"
	"dblpfetch/src/internal/httpx"
	"dblpfetch/src/internal/progress"
)

type CommitFunc func(paths []string, message string) error

// Deps are the seams tests replace.
type Deps struct {
	Commit CommitFunc
	HTTP   httpx.Doer
	Getenv func(string) string
}

// New returns the dblpfetch command.
func New(d Deps) *cobra.Command {
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	var (
		configPath string
		bibFile    string
		quiet      bool
		dryRun     bool
		commit     bool
		interval   time.Duration
		timeout    time.Duration
		searchURL  string
		recordURL  string
	)
	defaults := config.NewDefault()
	cmd := &cobra.Command{
		Use:   "dblpfetch <file>",
		Short: "Fetch missing DBLP BibTeX records and bibaliases for a LaTeX document",
		Long: "Scans the log, aux, BibTeX and bibalias files of a LaTeX build and finds missing citation entries.\n" +
			"A DBLP key citation (DBLP:conf/x/Y20) gets its BibTeX record downloaded from DBLP into the\n" +
			"bibliography file. A citation of the form !list:of:keywords is searched on DBLP; when it matches a\n" +
			"unique entry a \\bibalias to that DBLP key is added and its record is downloaded if needed.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewDefault()
			if configPath == "" {
				configPath = d.Getenv(config.EnvConfigFile)
			}
			if configPath != "" {
				if err := cfg.Load(configPath); err != nil {
					return err
				}
			}
			if err := cfg.ApplyEnv(d.Getenv); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("bibtex_file") {
				cfg.BibFile = bibFile
			}
			if flags.Changed("quiet") {
				cfg.Quiet = quiet
			}
			if flags.Changed("commit") {
				cfg.Commit = commit
			}
			if flags.Changed("interval") {
				cfg.Interval = interval
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if flags.Changed("search-url") {
				cfg.SearchURL = searchURL
			}
			if flags.Changed("record-url") {
				cfg.RecordURL = recordURL
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep := progress.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Quiet)
			sum, err := Run(ctx, Input{Doc: args[0], Config: cfg, DryRun: dryRun, HTTP: d.HTTP, Reporter: rep})
			if err != nil {
				return err
			}
			if cfg.Commit && !dryRun && d.Commit != nil {
				if changed := sum.Changed(); len(changed) > 0 {
					msg := fmt.Sprintf("dblpfetch: %s", strings.Join(summaryParts(sum), ", "))
					if err := d.Commit(changed, msg); err != nil {
						if !gitutil.IsNotRepository(err) {
							return err
						}
						rep.Warnf("skipping git commit (not a git repository)")
					}
				}
			}
			rep.Printf("Done. %s.", strings.Join(summaryParts(sum), ", "))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&bibFile, "bibtex_file", "b", defaults.BibFile, "File in which to store fetched DBLP BibTeX items")
	f.BoolVarP(&quiet, "quiet", "q", false, "Dial down the verbosity of message output")
	f.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (env "+config.EnvConfigFile+")")
	f.BoolVarP(&dryRun, "dry-run", "n", false, "Report missing entries without writing any file")
	f.BoolVar(&commit, "commit", false, "git commit the bibliography and bibalias files when they change")
	f.DurationVar(&interval, "interval", defaults.Interval, "Minimum spacing between DBLP requests")
	f.DurationVar(&timeout, "timeout", defaults.Timeout, "Per-request HTTP timeout (0 disables)")
	f.StringVar(&searchURL, "search-url", defaults.SearchURL, "DBLP publication search endpoint")
	f.StringVar(&recordURL, "record-url", defaults.RecordURL, "DBLP BibTeX record endpoint prefix")
	return cmd
}

func summaryParts(s Summary) []string {
	return []string{
		fmt.Sprintf("%d bibaliases added", s.AliasesAdded),
		fmt.Sprintf("%d records appended", s.RecordsAppended),
	}
}
