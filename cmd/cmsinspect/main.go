// Package main provides cmsinspect, a read-only command line inspector for
// compressed metadata store archives.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/mswsus/cms"
	"github.com/mswsus/cms/internal/cmsconfig"
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/fs"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

type options struct {
	archive    string
	configPath string
	guid       string
	revision   int
	help       bool
}

func run(args []string, out, errOut io.Writer) int {
	opts, code := parseFlags(args[1:], errOut)
	if code != 0 {
		return code
	}

	if opts.help {
		printHelp(out)

		return 0
	}

	if opts.archive == "" {
		fprintln(errOut, "error: --archive is required")
		printHelp(errOut)

		return 1
	}

	workDir, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, _, err := cmsconfig.LoadConfig(workDir, opts.configPath, cmsconfig.Config{}, os.Environ())
	if err != nil {
		fprintln(errOut, "error loading config:", err)

		return 1
	}

	fsys := fs.NewReal()

	store, err := cms.Open(fsys, cfg, opts.archive)
	if err != nil {
		fprintln(errOut, "error opening archive:", err)

		return 1
	}
	defer func() { _ = store.Close() }()

	printSummary(out, store, opts.archive)

	if opts.guid == "" {
		return 0
	}

	if err := printIdentity(out, store, opts.guid, opts.revision); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return 0
}

func printSummary(out io.Writer, store *cms.Store, archive string) {
	checksum, err := store.Checksum()
	if err != nil {
		fprintln(out, "archive:", archive)
		fprintln(out, "  checksum: <unavailable>:", err)
	} else {
		fprintln(out, "archive:", archive)
		fprintln(out, "  checksum:", checksum)
	}

	if anchor := store.CategoriesAnchor(); anchor != "" {
		fprintln(out, "  categories anchor:", anchor)
	}

	if filter, ok := store.Filter(); ok {
		fprintln(out, "  query filter present: true")
		_ = filter
	}
}

func printIdentity(out io.Writer, store *cms.Store, rawGUID string, revision int) error {
	g, err := uuid.Parse(rawGUID)
	if err != nil {
		return fmt.Errorf("invalid guid %q: %w", rawGUID, err)
	}

	id := identity.Identity{GUID: g, Revision: int32(revision)}

	idx, err := store.IndexOf(id)
	if err != nil {
		return err
	}

	fprintln(out)
	fprintln(out, "identity:", rawGUID, "revision:", revision, "index:", idx)

	if title, err := store.GetTitle(idx); err == nil {
		fprintln(out, "  title:", title)
	}

	if kb, ok, err := store.GetKBArticle(idx); err == nil && ok {
		fprintln(out, "  kb article:", kb)
	}

	if prereqs, err := store.GetPrerequisites(idx); err == nil && len(prereqs) > 0 {
		fprintln(out, "  prerequisites:", len(prereqs), "group(s)")
	}

	if children, err := store.GetBundleChildren(idx); err == nil && len(children) > 0 {
		fprintln(out, "  bundle children:", len(children))
	}

	if parents, err := store.GetBundleParents(idx); err == nil && len(parents) > 0 {
		fprintln(out, "  bundle parents:", len(parents))
	}

	if superseded, err := store.IsSuperseded(g); err == nil && superseded {
		fprintln(out, "  superseded: true")
	}

	return nil
}

func parseFlags(args []string, errOut io.Writer) (options, int) {
	flagSet := flag.NewFlagSet("cmsinspect", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	archive := flagSet.StringP("archive", "a", "", "Path to the archive file to inspect")
	configPath := flagSet.StringP("config", "c", "", "Use specified config file")
	guid := flagSet.String("guid", "", "Look up a single update by GUID")
	revision := flagSet.Int("revision", 0, "Revision of the update named by --guid")
	help := flagSet.BoolP("help", "h", false, "Show help")

	if err := flagSet.Parse(args); err != nil {
		fprintln(errOut, "error:", err)

		return options{}, 1
	}

	return options{
		archive:    *archive,
		configPath: *configPath,
		guid:       *guid,
		revision:   *revision,
		help:       *help,
	}, 0
}

func printHelp(w io.Writer) {
	fprintln(w, "Usage: cmsinspect --archive=<path> [options]")
	fprintln(w)
	fprintln(w, "Inspects a sealed compressed metadata store archive.")
	fprintln(w)
	fprintln(w, "Options:")
	fprintln(w, "  -a, --archive=<path>     Archive file to open (required)")
	fprintln(w, "  -c, --config=<file>      Use specified config file")
	fprintln(w, "      --guid=<guid>        Look up a single update by GUID")
	fprintln(w, "      --revision=<n>       Revision of the update named by --guid")
	fprintln(w, "  -h, --help               Show this help")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
